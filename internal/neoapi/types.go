package neoapi

// Types mirroring the NASA NEO feed payload. Field sets follow the upstream
// API documentation; anything not listed here is not served by this proxy.

// Links are the pagination links of a feed result.
type Links struct {
	Next string `json:"next"`
	Self string `json:"self"`
	Prev string `json:"prev"`
}

// RelativeVelocity of a close approach. Upstream serves numbers as strings.
type RelativeVelocity struct {
	KilometersPerSecond string `json:"kilometers_per_second"`
}

// MissDistance of a close approach. Upstream serves numbers as strings.
type MissDistance struct {
	Astronomical string `json:"astronomical"`
}

// CloseApproach is one approach event of an object.
type CloseApproach struct {
	CloseApproachDate      string           `json:"close_approach_date"`
	EpochDateCloseApproach int64            `json:"epoch_date_close_approach"`
	RelativeVelocity       RelativeVelocity `json:"relative_velocity"`
	MissDistance           MissDistance     `json:"miss_distance"`
	OrbitingBody           string           `json:"orbiting_body"`
}

// DiameterRange is an estimated min/max diameter in one unit.
type DiameterRange struct {
	EstimatedDiameterMin float64 `json:"estimated_diameter_min"`
	EstimatedDiameterMax float64 `json:"estimated_diameter_max"`
}

// EstimatedDiameter holds the kilometer estimate for an object.
type EstimatedDiameter struct {
	Kilometers DiameterRange `json:"kilometers"`
}

// Object is a near-earth object as returned by the feed. Treated as an
// immutable value once cached.
type Object struct {
	ID                             string            `json:"id"`
	Name                           string            `json:"name"`
	AbsoluteMagnitudeH             float64           `json:"absolute_magnitude_h"`
	EstimatedDiameter              EstimatedDiameter `json:"estimated_diameter"`
	IsPotentiallyHazardousAsteroid bool              `json:"is_potentially_hazardous_asteroid"`
	CloseApproachData              []CloseApproach   `json:"close_approach_data"`
	IsSentryObject                 bool              `json:"is_sentry_object"`
}

// FeedResult is the shape of one feed response: objects grouped by ISO date.
type FeedResult struct {
	Links            Links               `json:"links"`
	ElementCount     int                 `json:"element_count"`
	NearEarthObjects map[string][]Object `json:"near_earth_objects"`
}
