package entities

import "strings"

type Patient struct {
	ID       ID       `json:"id"`
	Name     string   `json:"name"`
	Age      int      `json:"age"`
	DoctorID ID       `json:"doctorId"`
	Symptoms []string `json:"symptoms"`
	Visit    Visit    `json:"visit"`
}

type Visit struct {
	Date      string    `json:"date"`
	Diagnosis Diagnosis `json:"diagnosis"`
}

type Diagnosis struct {
	System      string `json:"system"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// SymptomList renders symptoms for display, "N/A" when there are none.
func (p Patient) SymptomList() string {
	if len(p.Symptoms) == 0 {
		return "N/A"
	}
	return strings.Join(p.Symptoms, ", ")
}

func FindPatient(patients []Patient, id ID) (Patient, bool) {
	for _, p := range patients {
		if p.ID == id {
			return p, true
		}
	}
	return Patient{}, false
}
