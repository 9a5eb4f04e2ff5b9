package calendar

// Каталог комнат фиксирован и отдаётся как есть, в этом порядке.
var rooms = []string{
	"Тенниска",
	"Боталка в блоках",
	"Боталка в коридорах 2 этажа",
	"Боталка в коридорах 3 этажа",
}

// Rooms возвращает копию каталога комнат.
func Rooms() []string {
	out := make([]string, len(rooms))
	copy(out, rooms)
	return out
}

// IsKnownRoom — комната есть в каталоге.
func IsKnownRoom(room string) bool {
	for _, r := range rooms {
		if r == room {
			return true
		}
	}
	return false
}
