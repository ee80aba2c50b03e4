package backend

// AggKind selects the computation behind one named aggregation.
type AggKind int

const (
	AggTotalCount AggKind = iota
	AggDatetimeMin
	AggDatetimeMax
	AggTerms
	AggNumericHist
	AggMonthHist
	AggGrid
)

// GridKind selects the spatial grid of a grid aggregation.
type GridKind int

const (
	GridNone GridKind = iota
	GridGeohash
	GridGeohex
	GridGeotile
)

// AggSpec describes one supported aggregation: how it is computed, which
// document field it reads and, for grids, the legal precision range.
type AggSpec struct {
	Name         string
	Kind         AggKind
	DataType     string
	Field        string
	Interval     float64
	Grid         GridKind
	MinPrecision int
	MaxPrecision int
}

// Specs is the catalog of every aggregation the service can compute,
// keyed by public name. Collections opt in to a subset via their
// "aggregations" declaration.
var Specs = map[string]AggSpec{
	"total_count":  {Name: "total_count", Kind: AggTotalCount, DataType: "integer"},
	"datetime_min": {Name: "datetime_min", Kind: AggDatetimeMin, DataType: "datetime"},
	"datetime_max": {Name: "datetime_max", Kind: AggDatetimeMax, DataType: "datetime"},

	"collection_frequency": {Name: "collection_frequency", Kind: AggTerms, DataType: "frequency_distribution", Field: "collection"},
	"platform_frequency":   {Name: "platform_frequency", Kind: AggTerms, DataType: "frequency_distribution", Field: "properties.platform"},
	"grid_code_frequency":  {Name: "grid_code_frequency", Kind: AggTerms, DataType: "frequency_distribution", Field: "properties.grid:code"},

	"sun_elevation_frequency": {Name: "sun_elevation_frequency", Kind: AggNumericHist, DataType: "frequency_distribution", Field: "properties.view:sun_elevation", Interval: 5},
	"sun_azimuth_frequency":   {Name: "sun_azimuth_frequency", Kind: AggNumericHist, DataType: "frequency_distribution", Field: "properties.view:sun_azimuth", Interval: 5},
	"off_nadir_frequency":     {Name: "off_nadir_frequency", Kind: AggNumericHist, DataType: "frequency_distribution", Field: "properties.view:off_nadir", Interval: 5},
	"cloud_cover_frequency":   {Name: "cloud_cover_frequency", Kind: AggNumericHist, DataType: "frequency_distribution", Field: "properties.eo:cloud_cover", Interval: 5},

	"datetime_frequency": {Name: "datetime_frequency", Kind: AggMonthHist, DataType: "frequency_distribution", Field: "properties.datetime"},

	"grid_geohash_frequency": {Name: "grid_geohash_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeohash, MinPrecision: 1, MaxPrecision: 12},
	"grid_geohex_frequency":  {Name: "grid_geohex_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeohex, MinPrecision: 0, MaxPrecision: 15},
	"grid_geotile_frequency": {Name: "grid_geotile_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeotile, MinPrecision: 0, MaxPrecision: 29},

	"geometry_geohash_grid_frequency": {Name: "geometry_geohash_grid_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeohash, MinPrecision: 1, MaxPrecision: 12},
	"geometry_geohex_grid_frequency":  {Name: "geometry_geohex_grid_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeohex, MinPrecision: 0, MaxPrecision: 15},
	"geometry_geotile_grid_frequency": {Name: "geometry_geotile_grid_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeotile, MinPrecision: 0, MaxPrecision: 29},
	"centroid_geohash_grid_frequency": {Name: "centroid_geohash_grid_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeohash, MinPrecision: 1, MaxPrecision: 12},
	"centroid_geohex_grid_frequency":  {Name: "centroid_geohex_grid_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeohex, MinPrecision: 0, MaxPrecision: 15},
	"centroid_geotile_grid_frequency": {Name: "centroid_geotile_grid_frequency", Kind: AggGrid, DataType: "frequency_distribution", Grid: GridGeotile, MinPrecision: 0, MaxPrecision: 29},
}

// AllNames lists every supported aggregation in a stable order, used as
// the catalog-wide default when a collection declares none.
var AllNames = []string{
	"total_count",
	"datetime_max",
	"datetime_min",
	"datetime_frequency",
	"collection_frequency",
	"grid_code_frequency",
	"grid_geohash_frequency",
	"grid_geohex_frequency",
	"grid_geotile_frequency",
	"centroid_geohash_grid_frequency",
	"centroid_geohex_grid_frequency",
	"centroid_geotile_grid_frequency",
	"geometry_geohash_grid_frequency",
	"geometry_geohex_grid_frequency",
	"geometry_geotile_grid_frequency",
	"platform_frequency",
	"sun_elevation_frequency",
	"sun_azimuth_frequency",
	"off_nadir_frequency",
	"cloud_cover_frequency",
}
