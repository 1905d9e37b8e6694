package assign_technician

// AssignTechnicianRequest HTTP request model
type AssignTechnicianRequest struct {
	TechnicianID int64 `json:"technicianId" validate:"required,gt=0"`
}
