package httpdto

type CreateThreadRequest struct {
	CoupleID    string `json:"couple_id" binding:"required"`
	VendorID    string `json:"vendor_id" binding:"required"`
	LeadID      string `json:"lead_id"`
	ServiceType string `json:"service_type"`
}
