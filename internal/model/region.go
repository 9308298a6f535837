package model

// Region is a farm (e.g. "YY", "597").
type Region struct {
	ID   uint64
	Name string
	Lon  float64
	Lat  float64
}

type regionJSON struct {
	ID     uint64     `json:"region_id"`
	Name   string     `json:"region_name"`
	LonLat [2]float64 `json:"region_lonlat"`
}

func (r Region) MarshalJSON() ([]byte, error) {
	return marshal(regionJSON{ID: r.ID, Name: r.Name, LonLat: [2]float64{r.Lon, r.Lat}})
}

// Crop is an entry of the crop catalogue.
type Crop struct {
	ID   uint64 `json:"crop_id"`
	Name string `json:"crop_name"`
}

// Field is a cultivated plot within a region.
type Field struct {
	ID       uint64  `json:"field_id"`
	RegionID uint64  `json:"region_id"`
	CropID   uint64  `json:"crop_id"`
	Area     float64 `json:"field_area"`
}

// Precinct is a management area of a region.  At most one manager is
// responsible for a precinct and a manager is responsible for at most one.
type Precinct struct {
	ID         uint64  `json:"precinct_id"`
	RegionID   uint64  `json:"region_id"`
	RegionName string  `json:"region_name"`
	UserID     *uint64 `json:"user_id"`
	UserName   *string `json:"user_name"`
	UserEmail  *string `json:"user_email"`
	Name       string  `json:"precinct_name"`
	Area       float64 `json:"precinct_area"`
}

// Device is a monitoring device installed in a region.  Soil records are
// keyed by device id.
type Device struct {
	ID              uint64
	RegionID        uint64
	RegionName      string
	Instance        string
	Type            string
	Lon             float64
	Lat             float64
	AbnormalityRate *float64
}

type deviceJSON struct {
	RegionID        uint64     `json:"region_id"`
	RegionName      string     `json:"region_name"`
	ID              uint64     `json:"device_id"`
	Instance        string     `json:"device_instance"`
	Type            string     `json:"device_type"`
	LonLat          [2]float64 `json:"device_lonlat"`
	AbnormalityRate *float64   `json:"device_abnormality_rate"`
}

func (d Device) MarshalJSON() ([]byte, error) {
	return marshal(deviceJSON{
		RegionID:        d.RegionID,
		RegionName:      d.RegionName,
		ID:              d.ID,
		Instance:        d.Instance,
		Type:            d.Type,
		LonLat:          [2]float64{d.Lon, d.Lat},
		AbnormalityRate: d.AbnormalityRate,
	})
}
