package geo

import "math"

const earthRadiusKm = 6371

// DistanceKm is the haversine great-circle distance between two points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Box is a lat/lng rectangle. AllLng means the longitude range wraps or
// reaches a pole, so longitude must not be filtered.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	AllLng         bool
}

// BoundingBox returns the smallest rectangle holding every point within
// radiusKm of (lat, lng).
func BoundingBox(lat, lng, radiusKm float64) Box {
	d := radiusKm / earthRadiusKm // angular radius
	b := Box{
		MinLat: lat - deg(d),
		MaxLat: lat + deg(d),
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		b.MinLat = math.Max(b.MinLat, -90)
		b.MaxLat = math.Min(b.MaxLat, 90)
		b.AllLng = true
		return b
	}
	ratio := math.Sin(d) / math.Cos(rad(lat))
	if ratio >= 1 {
		b.AllLng = true
		return b
	}
	dLng := deg(math.Asin(ratio))
	b.MinLng, b.MaxLng = lng-dLng, lng+dLng
	if b.MinLng < -180 || b.MaxLng > 180 {
		b.AllLng = true
	}
	return b
}

func deg(r float64) float64 { return r * 180 / math.Pi }
