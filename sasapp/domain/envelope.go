package domain

const (
	StatusSucesso = "sucesso"
	StatusErro    = "erro"
)

// Envelope é o formato único de resposta JSON para o browser.
type Envelope struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Ok(data any, message string) Envelope {
	return Envelope{Success: true, Status: StatusSucesso, Message: message, Data: data}
}

func Fail(message string) Envelope {
	return Envelope{Success: false, Status: StatusErro, Message: message}
}

// Result é um envelope já decidido junto com o status HTTP a devolver.
type Result struct {
	Code     int
	Envelope Envelope
}
