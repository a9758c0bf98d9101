package api

// CheckinRequest is the JSON body for POST /checkin.
type CheckinRequest struct {
	Hostname string `json:"hostname"`
}

// CheckinResponse is returned by POST /checkin for recorded and repeat check-ins.
type CheckinResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// EmailRequest is the optional JSON body for POST /send_pdf_email.
type EmailRequest struct {
	Date string `json:"date"`
}

// MessageResponse is a status/message pair with an optional result.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// ErrorResponse is returned on errors. Message is always a short fixed text.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
