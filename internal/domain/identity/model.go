package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/pkg/date"
)

// Patient maps to the patient table. Rows are immutable once created.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID string     `db:"patient_id" json:"patientId"`
	Name      string     `db:"name" json:"name"`
	Age       int        `db:"age" json:"age"`
	Gender    string     `db:"gender" json:"gender"`
	Contact   string     `db:"contact" json:"contact"`
	Address   string     `db:"address" json:"address"`
	CreatedBy *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// PatientSummary is the patient block embedded in clinical responses.
type PatientSummary struct {
	ID        uuid.UUID `json:"id"`
	PatientID string    `json:"patientId"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Contact   string    `json:"contact,omitempty"`
}

func (p *Patient) Summary() *PatientSummary {
	return &PatientSummary{
		ID:        p.ID,
		PatientID: p.PatientID,
		Name:      p.Name,
		Age:       p.Age,
		Gender:    p.Gender,
		Contact:   p.Contact,
	}
}

type CreatePatientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Age     int    `json:"age" validate:"gte=0,lte=150"`
	Gender  string `json:"gender" validate:"required,oneof=male female other Male Female Other"`
	Contact string `json:"contact" validate:"max=20"`
	Address string `json:"address" validate:"max=1000"`
}

// Registration maps to patient_registration: the comprehensive intake record
// keyed by an MRU number.
type Registration struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	MRUNumber             string     `db:"mru_number" json:"mruNumber"`
	FirstName             string     `db:"first_name" json:"firstName"`
	LastName              string     `db:"last_name" json:"lastName"`
	DateOfBirth           *date.Date `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Age                   int        `db:"age" json:"age"`
	Gender                string     `db:"gender" json:"gender"`
	BloodGroup            string     `db:"blood_group" json:"bloodGroup"`
	MaritalStatus         string     `db:"marital_status" json:"maritalStatus"`
	Phone                 string     `db:"phone" json:"phone"`
	Email                 string     `db:"email" json:"email"`
	Address               string     `db:"address" json:"address"`
	City                  string     `db:"city" json:"city"`
	State                 string     `db:"state" json:"state"`
	Pincode               string     `db:"pincode" json:"pincode"`
	EmergencyContactName  string     `db:"emergency_contact_name" json:"emergencyContactName"`
	EmergencyContactPhone string     `db:"emergency_contact_phone" json:"emergencyContactPhone"`
	InsuranceProvider     string     `db:"insurance_provider" json:"insuranceProvider"`
	InsuranceNumber       string     `db:"insurance_number" json:"insuranceNumber"`
	Allergies             string     `db:"allergies" json:"allergies"`
	CreatedBy             *uuid.UUID `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updatedAt"`
}

// RegistrationRequest is the body of both create and update.
type RegistrationRequest struct {
	FirstName             string     `json:"firstName" validate:"required,max=100"`
	LastName              string     `json:"lastName" validate:"max=100"`
	DateOfBirth           *date.Date `json:"dateOfBirth"`
	Age                   int        `json:"age" validate:"gte=0,lte=150"`
	Gender                string     `json:"gender" validate:"required,oneof=male female other Male Female Other"`
	BloodGroup            string     `json:"bloodGroup" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	MaritalStatus         string     `json:"maritalStatus" validate:"max=20"`
	Phone                 string     `json:"phone" validate:"required,max=20"`
	Email                 string     `json:"email" validate:"omitempty,email,max=200"`
	Address               string     `json:"address"`
	City                  string     `json:"city" validate:"max=100"`
	State                 string     `json:"state" validate:"max=100"`
	Pincode               string     `json:"pincode" validate:"max=10"`
	EmergencyContactName  string     `json:"emergencyContactName" validate:"max=200"`
	EmergencyContactPhone string     `json:"emergencyContactPhone" validate:"max=20"`
	InsuranceProvider     string     `json:"insuranceProvider" validate:"max=200"`
	InsuranceNumber       string     `json:"insuranceNumber" validate:"max=100"`
	Allergies             string     `json:"allergies"`
}

func (r RegistrationRequest) apply(reg *Registration) {
	reg.FirstName = r.FirstName
	reg.LastName = r.LastName
	reg.DateOfBirth = r.DateOfBirth
	reg.Age = r.Age
	reg.Gender = normalizeGender(r.Gender)
	reg.BloodGroup = r.BloodGroup
	reg.MaritalStatus = r.MaritalStatus
	reg.Phone = r.Phone
	reg.Email = r.Email
	reg.Address = r.Address
	reg.City = r.City
	reg.State = r.State
	reg.Pincode = r.Pincode
	reg.EmergencyContactName = r.EmergencyContactName
	reg.EmergencyContactPhone = r.EmergencyContactPhone
	reg.InsuranceProvider = r.InsuranceProvider
	reg.InsuranceNumber = r.InsuranceNumber
	reg.Allergies = r.Allergies
}
