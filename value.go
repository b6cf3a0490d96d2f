package quarry

import (
	"fmt"
	"strings"
)

/*
GeoPoint is a point on the earth's surface. Latitude and longitude are
validated on construction; the zero value is the null island and is valid.
*/
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

func NewGeoPoint(latitude, longitude float64) (GeoPoint, error) {
	if latitude < -90 || latitude > 90 {
		return GeoPoint{}, fmt.Errorf("latitude must be within [-90, 90], got %v", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return GeoPoint{}, fmt.Errorf("longitude must be within [-180, 180], got %v", longitude)
	}
	return GeoPoint{Latitude: latitude, Longitude: longitude}, nil
}

/*
GeoDistance is a distance on the sphere, stored in radians so it can be
handed to the server's spherical operators without conversion.
*/
type GeoDistance struct {
	Radians float64
}

const (
	earthRadiusKilometers = 6371.0
	earthRadiusMiles      = 3958.8
)

func GeoDistanceInRadians(radians float64) GeoDistance {
	return GeoDistance{Radians: radians}
}

func GeoDistanceInKilometers(kilometers float64) GeoDistance {
	return GeoDistance{Radians: kilometers / earthRadiusKilometers}
}

func GeoDistanceInMiles(miles float64) GeoDistance {
	return GeoDistance{Radians: miles / earthRadiusMiles}
}

func (distance GeoDistance) Kilometers() float64 {
	return distance.Radians * earthRadiusKilometers
}

func (distance GeoDistance) Miles() float64 {
	return distance.Radians * earthRadiusMiles
}

/*
ObjectRef is a typed reference to a stored object. It encodes to the wire
pointer form and can be used anywhere a constraint operand is accepted.
*/
type ObjectRef struct {
	Collection string
	ID         string
}

// RegexFlag configures how a Regex pattern is interpreted.
type RegexFlag uint8

const (
	// RegexPortable marks the pattern as written in the cross-platform
	// dialect shared by client and server. Pattern matching refuses
	// patterns without it.
	RegexPortable RegexFlag = 1 << iota
	RegexIgnoreCase
	RegexMultiline
)

func (flags RegexFlag) has(flag RegexFlag) bool {
	return flags&flag != 0
}

/*
Regex is a server-evaluated pattern. Flags beyond RegexPortable translate
into wire modifiers when the pattern is attached to a query.
*/
type Regex struct {
	pattern string
	flags   RegexFlag
}

func NewRegex(pattern string, flags RegexFlag) Regex {
	return Regex{pattern: pattern, flags: flags}
}

func (regex Regex) Pattern() string {
	return regex.pattern
}

// options folds the flag-derived modifiers into the caller-supplied ones,
// skipping letters already present.
func (regex Regex) options(modifiers string) string {
	opts := modifiers
	if regex.flags.has(RegexIgnoreCase) && !strings.Contains(opts, "i") {
		opts += "i"
	}
	if regex.flags.has(RegexMultiline) && !strings.Contains(opts, "m") {
		opts += "m"
	}
	return opts
}

/*
regexQuote wraps a literal in \Q...\E so the server's pattern engine treats
it verbatim. An embedded \E would terminate the quoted section early, so it
is rewritten to close the section, emit a literal \E, and reopen it.
*/
func regexQuote(literal string) string {
	return `\Q` + strings.ReplaceAll(literal, `\E`, `\E\\E\Q`) + `\E`
}
