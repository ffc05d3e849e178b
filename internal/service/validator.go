package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"coughstore/internal/config"
	"coughstore/internal/domain"
)

// Фиксированный список MIME-типов, согласованный с допустимыми форматами
var allowedMimeTypes = map[string]bool{
	"audio/wav":   true,
	"audio/wave":  true,
	"audio/x-wav": true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/webm":  true,
	"audio/ogg":   true,
	"audio/mp4":   true,
	"audio/m4a":   true,
}

const (
	anonymousNameMinLen = 2
	anonymousNameMaxLen = 50
)

// AudioValidator проверяет загружаемый файл до любых побочных эффектов.
// Чистый предикат над входными данными и политикой из конфигурации
type AudioValidator struct {
	cfg config.UploadConfig
}

func NewAudioValidator(cfg config.UploadConfig) *AudioValidator {
	return &AudioValidator{cfg: cfg}
}

// FileFormat выделяет формат из имени файла: расширение в нижнем
// регистре без ведущей точки, независимо от заявленного content-type
func FileFormat(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// Validate проверяет размер, расширение и заявленный content-type.
// Проверки выполняются по порядку, первая неудачная завершает проверку
func (v *AudioValidator) Validate(fileName string, sizeBytes int64, contentType string) error {
	if sizeBytes > v.cfg.MaxFileSize() {
		return domain.NewValidationError(domain.ErrKindFileTooLarge, fmt.Sprintf(
			"File size (%.1fMB) exceeds maximum allowed size (%.1fMB)",
			float64(sizeBytes)/(1024*1024),
			float64(v.cfg.MaxFileSize())/(1024*1024),
		))
	}

	format := FileFormat(fileName)
	allowed := false
	for _, f := range v.cfg.AllowedFormats {
		if format == strings.ToLower(strings.TrimSpace(f)) {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.NewValidationError(domain.ErrKindUnsupportedFormat, fmt.Sprintf(
			"File format %q not supported. Allowed formats: %s",
			format, strings.Join(v.cfg.AllowedFormats, ", "),
		))
	}

	// Отсутствие заявленного content-type ошибкой не считается
	if contentType != "" && !allowedMimeTypes[contentType] {
		return domain.NewValidationError(domain.ErrKindUnsupportedMimeType, fmt.Sprintf(
			"MIME type %q not supported", contentType,
		))
	}

	return nil
}

// ValidateAnonymousName проверяет анонимное имя: 2..50 символов из
// набора [A-Za-z0-9_-]
func ValidateAnonymousName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError(domain.ErrKindValidation, "Anonymous name is required")
	}
	if len(name) < anonymousNameMinLen {
		return domain.NewValidationError(domain.ErrKindValidation,
			fmt.Sprintf("Anonymous name must be at least %d characters long", anonymousNameMinLen))
	}
	if len(name) > anonymousNameMaxLen {
		return domain.NewValidationError(domain.ErrKindValidation,
			fmt.Sprintf("Anonymous name must be less than %d characters", anonymousNameMaxLen))
	}
	for _, c := range name {
		if !isAnonymousNameChar(c) {
			return domain.NewValidationError(domain.ErrKindValidation,
				"Anonymous name can only contain letters, numbers, hyphens, and underscores")
		}
	}
	return nil
}

func isAnonymousNameChar(c rune) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '_'
}

// ValidateRecordingMethod проверяет способ записи
func ValidateRecordingMethod(method domain.RecordingMethod) error {
	switch method {
	case domain.MethodBrowser, domain.MethodUpload:
		return nil
	}
	return domain.NewValidationError(domain.ErrKindValidation,
		fmt.Sprintf("Recording method must be one of: %s, %s", domain.MethodBrowser, domain.MethodUpload))
}

// sanitizeFileName нормализует имя файла для хранения: отбрасывает
// путь, заменяет небезопасные символы и ограничивает длину
func sanitizeFileName(fileName string) string {
	fileName = filepath.Base(fileName)

	const unsafeChars = `<>:"/\|?*`
	fileName = strings.Map(func(c rune) rune {
		if strings.ContainsRune(unsafeChars, c) {
			return '_'
		}
		return c
	}, fileName)

	ext := filepath.Ext(fileName)
	name := strings.TrimSuffix(fileName, ext)
	if len(name) > 100 {
		name = name[:100]
	}

	return name + ext
}
