package mysql

const upsertPropertySQL = `
INSERT INTO properties
  (id, slug, name, location, lat, lon, geo_address, bedrooms, bathrooms, max_guests, price_per_night, status, hostaway_id, place_id)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  slug            = VALUES(slug),
  name            = VALUES(name),
  location        = VALUES(location),
  lat             = VALUES(lat),
  lon             = VALUES(lon),
  geo_address     = VALUES(geo_address),
  bedrooms        = VALUES(bedrooms),
  bathrooms       = VALUES(bathrooms),
  max_guests      = VALUES(max_guests),
  price_per_night = VALUES(price_per_night),
  status          = VALUES(status),
  hostaway_id     = VALUES(hostaway_id),
  place_id        = VALUES(place_id),
  updated_at      = CURRENT_TIMESTAMP
`

// Note: `text` is reserved; keep it quoted everywhere.
const insertReviewsPrefix = "INSERT INTO reviews\n" +
	"  (id, property_id, channel, type, status, approved, rating, categories, `text`, guest_name, submitted_at, manager_notes)\n" +
	"VALUES "

// Re-syncing a channel must refresh content but never stomp a manager's
// workflow decision, so status/approved/manager_notes are left alone.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  rating       = VALUES(rating),\n" +
	"  categories   = VALUES(categories),\n" +
	"  `text`       = VALUES(`text`),\n" +
	"  guest_name   = VALUES(guest_name),\n" +
	"  submitted_at = VALUES(submitted_at),\n" +
	"  updated_at   = CURRENT_TIMESTAMP\n"

const setPropertyGeoSQL = `
UPDATE properties
SET lat = ?, lon = ?, geo_address = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

const insertMissSQL = `
INSERT INTO sync_misses (property_id, http_status, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE http_status = VALUES(http_status), seen_at = CURRENT_TIMESTAMP
`

const propertyCols = `
  p.id, p.slug, p.name, p.location, p.lat, p.lon, p.geo_address,
  p.bedrooms, p.bathrooms, p.max_guests, p.price_per_night, p.status,
  p.hostaway_id, p.place_id
`

const getPropertySQL = `
SELECT ` + propertyCols + `
FROM properties p
WHERE p.slug = ? OR p.id = ?
`

// reviewCols is shared by every review SELECT; the join gives the listing
// substring filter the authoritative property name.
const reviewCols = `
  r.id, r.property_id, p.name, r.channel, r.type, r.status, r.approved,
  r.rating, r.categories, r.` + "`text`" + `, r.guest_name, r.submitted_at,
  r.updated_at, r.manager_notes, r.updated_by
`

const reviewFrom = `
FROM reviews r
JOIN properties p ON p.id = r.property_id
`

const rollupSQL = `
SELECT revenue_pence, occupancy
FROM monthly_rollups
WHERE month = ?
`
