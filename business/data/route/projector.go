package route

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Projector maps a raw coordinate onto the route geometry.
// Implementations must be pure with respect to a fixed route: the same
// coordinate always produces the same result for the lifetime of the run.
type Projector interface {
	// DistanceAlongRoute returns the cumulative distance in meters traveled
	// along the route to the point nearest the given coordinate.
	DistanceAlongRoute(lat, lng float64) (float64, error)
	// DistanceFromRoute returns the distance in meters between the given
	// coordinate and the route geometry, used for off-route detection.
	DistanceFromRoute(lat, lng float64) (float64, error)
}

// ProjectionError indicates the geometry engine failed to project a
// coordinate. Projection failures are fatal: without the route geometry no
// part of the analysis is meaningful.
type ProjectionError struct {
	Op  string
	Err error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("route projection failed during %s: %v", e.Op, e.Err)
}

func (e *ProjectionError) Unwrap() error {
	return e.Err
}

// PostgisProjector implements Projector against a PostGIS database holding
// the route linestring in table linha<line>. Map matching works over a view
// of points interpolated along the line at a fixed spacing: the nearest
// interpolated point to a coordinate gives its path index, and the length of
// the sub-line up to that index gives the cumulative distance.
type PostgisProjector struct {
	db   *sqlx.DB
	line int
}

// NewPostgisProjector builds a PostgisProjector for the given route line.
func NewPostgisProjector(db *sqlx.DB, line int) *PostgisProjector {
	return &PostgisProjector{db: db, line: line}
}

// Prepare installs the interpolated-point view and multipoint helper for the
// route line. Must be called once before any projection.
func (p *PostgisProjector) Prepare(spacing float64) error {
	viewStatement := fmt.Sprintf(
		"CREATE OR REPLACE VIEW route_points AS "+
			"SELECT (ST_DumpPoints(ST_LineInterpolatePoints(wkb_geometry, %g))).path[1] AS path, "+
			"(ST_DumpPoints(ST_LineInterpolatePoints(wkb_geometry, %g))).geom AS geom "+
			"FROM linha%d", spacing, spacing, p.line)
	if _, err := p.db.Exec(viewStatement); err != nil {
		return &ProjectionError{Op: "preparing route point view", Err: err}
	}

	multiPointStatement := fmt.Sprintf(
		"CREATE OR REPLACE FUNCTION ST_AsMultiPoint(geometry) RETURNS geometry AS "+
			"'SELECT ST_Union((d).geom) FROM ST_DumpPoints(ST_LineInterpolatePoints($1, %g)) AS d;' "+
			"LANGUAGE sql IMMUTABLE STRICT COST 10", spacing)
	if _, err := p.db.Exec(multiPointStatement); err != nil {
		return &ProjectionError{Op: "preparing multipoint function", Err: err}
	}
	return nil
}

// DistanceAlongRoute projects the coordinate onto the nearest interpolated
// route point and measures the geodesic length of the route up to it.
func (p *PostgisProjector) DistanceAlongRoute(lat, lng float64) (float64, error) {
	closestPointQuery := fmt.Sprintf(
		"SELECT ST_ClosestPoint(ST_AsMultiPoint(linha.wkb_geometry), pt.geometry) "+
			"FROM ST_GeomFromText('POINT(%g %g)', 4326) AS pt, linha%d AS linha", lng, lat, p.line)
	var closestPoint string
	if err := p.db.Get(&closestPoint, closestPointQuery); err != nil {
		return 0, &ProjectionError{Op: "matching nearest route point", Err: err}
	}

	var pathIndex int
	if err := p.db.Get(&pathIndex, "SELECT path FROM route_points WHERE geom = $1", closestPoint); err != nil {
		return 0, &ProjectionError{Op: "resolving route point index", Err: err}
	}

	var distance float64
	if err := p.db.Get(&distance,
		"SELECT ST_Length(ST_MakeLine(geom), true) FROM route_points WHERE path <= $1", pathIndex); err != nil {
		return 0, &ProjectionError{Op: "measuring traveled distance", Err: err}
	}
	return distance, nil
}

// DistanceFromRoute measures the geodesic distance between the coordinate
// and the route linestring.
func (p *PostgisProjector) DistanceFromRoute(lat, lng float64) (float64, error) {
	query := fmt.Sprintf(
		"SELECT ST_Distance(pt, linha.wkb_geometry, true) "+
			"FROM ST_GeomFromText('POINT(%g %g)', 4326) AS pt, linha%d AS linha", lng, lat, p.line)
	var distance float64
	if err := p.db.Get(&distance, query); err != nil {
		return 0, &ProjectionError{Op: "measuring distance from route", Err: err}
	}
	return distance, nil
}
