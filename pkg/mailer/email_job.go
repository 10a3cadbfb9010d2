package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// The handlers enqueue plain-text notifications; HTML is optional.
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}
