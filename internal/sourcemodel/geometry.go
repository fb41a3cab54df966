package sourcemodel

import "math"

// kmPerDegree is the length of one degree of latitude on a spherical Earth
// with radius 6371 km.
const kmPerDegree = 111.194926645

// Discretize covers a polygon with a regular grid whose nodes are spaced
// approximately spacingKm apart and returns the nodes falling inside it.
// Longitude steps are scaled by the cosine of the polygon's mid latitude.
// When no node falls inside, the polygon centroid is returned so every area
// source keeps at least one point.
func Discretize(polygon []Point, spacingKm float64) []Point {
	if len(polygon) < 3 || spacingKm <= 0 {
		return nil
	}

	minLon, maxLon := polygon[0].Lon, polygon[0].Lon
	minLat, maxLat := polygon[0].Lat, polygon[0].Lat
	for _, p := range polygon[1:] {
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
	}

	latStep := spacingKm / kmPerDegree
	cosLat := math.Cos((minLat + maxLat) / 2 * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lonStep := latStep / cosLat

	var mesh []Point
	for lat := minLat + latStep/2; lat <= maxLat; lat += latStep {
		for lon := minLon + lonStep/2; lon <= maxLon; lon += lonStep {
			if Contains(polygon, lon, lat) {
				mesh = append(mesh, Point{Lon: Round(lon, 5), Lat: Round(lat, 5)})
			}
		}
	}

	if len(mesh) == 0 {
		c := Centroid(polygon)
		mesh = append(mesh, Point{Lon: Round(c.Lon, 5), Lat: Round(c.Lat, 5)})
	}
	return mesh
}

// Contains reports whether (lon, lat) lies inside the polygon (even-odd rule).
func Contains(polygon []Point, lon, lat float64) bool {
	inside := false
	j := len(polygon) - 1
	for i := range polygon {
		pi, pj := polygon[i], polygon[j]
		if (pi.Lat > lat) != (pj.Lat > lat) {
			cross := (pj.Lon-pi.Lon)*(lat-pi.Lat)/(pj.Lat-pi.Lat) + pi.Lon
			if lon < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Centroid returns the vertex average of the polygon.
func Centroid(polygon []Point) Point {
	var c Point
	if len(polygon) == 0 {
		return c
	}
	for _, p := range polygon {
		c.Lon += p.Lon
		c.Lat += p.Lat
	}
	n := float64(len(polygon))
	c.Lon /= n
	c.Lat /= n
	return c
}
