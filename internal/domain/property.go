package domain

// Property is a managed listing. PricePerNight is pence; presentation
// divides by 100 exactly once, in the stats query.
type Property struct {
	ID            int64
	Slug          string
	Name          string
	Location      string
	Lat, Lon      *float64
	GeoAddress    *string
	Bedrooms      int
	Bathrooms     int
	MaxGuests     int
	PricePerNight int64
	Status        string // active|inactive

	// External identities used by the sync job.
	HostawayID *int64
	PlaceID    *string
}

// HasCoords reports whether the property has been geocoded.
func (p Property) HasCoords() bool { return p.Lat != nil && p.Lon != nil }
