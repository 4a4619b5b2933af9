package models

// Direction selects which edge of a timeline a pagination call extends.
// The values match the client-server API's dir parameter.
type Direction string

const (
	DirectionBackwards Direction = "b"
	DirectionForwards  Direction = "f"
)

// Valid reports whether the direction is one of the known values.
func (d Direction) Valid() bool {
	return d == DirectionBackwards || d == DirectionForwards
}
