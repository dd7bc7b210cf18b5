package entities

type Doctor struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// FindDoctor returns the doctor whose ID matches id. The list is expected to be
// small, so a linear scan is used.
func FindDoctor(doctors []Doctor, id ID) (Doctor, bool) {
	if id == "" {
		return Doctor{}, false
	}
	for _, d := range doctors {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}
