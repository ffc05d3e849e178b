package domain

// ErrorKind задает машиночитаемый вид ошибки валидации
type ErrorKind string

const (
	ErrKindFileTooLarge        ErrorKind = "file_too_large"
	ErrKindUnsupportedFormat   ErrorKind = "unsupported_format"
	ErrKindUnsupportedMimeType ErrorKind = "unsupported_mime_type"
	ErrKindValidation          ErrorKind = "validation_error"
)

// ValidationError описывает терминальную ошибку проверки входных данных.
// Такие ошибки возвращаются вызывающему как есть, без побочных эффектов
type ValidationError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(kind ErrorKind, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}
