package service

import (
	"errors"
	"strings"
	"testing"

	"coughstore/internal/config"
	"coughstore/internal/domain"
)

func validationKind(t *testing.T, err error) domain.ErrorKind {
	t.Helper()
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Ожидалась ошибка валидации, получено: %v", err)
	}
	return vErr.Kind
}

func TestValidate_SizeLimit(t *testing.T) {
	v := NewAudioValidator(config.DefaultUploadConfig())

	if err := v.Validate("cough.wav", 50*1024*1024, "audio/wav"); err != nil {
		t.Errorf("Файл ровно в 50MB должен проходить, получена ошибка: %v", err)
	}

	err := v.Validate("cough.wav", 50*1024*1024+1, "audio/wav")
	if err == nil {
		t.Fatal("Файл больше 50MB должен отклоняться")
	}
	if kind := validationKind(t, err); kind != domain.ErrKindFileTooLarge {
		t.Errorf("Ожидался вид ошибки %q, получен %q", domain.ErrKindFileTooLarge, kind)
	}
}

func TestValidate_SizeCheckedFirst(t *testing.T) {
	v := NewAudioValidator(config.DefaultUploadConfig())

	// Слишком большой файл недопустимого формата: размер проверяется первым
	err := v.Validate("cough.flac", 51*1024*1024, "audio/flac")
	if err == nil {
		t.Fatal("Ожидалась ошибка валидации")
	}
	if kind := validationKind(t, err); kind != domain.ErrKindFileTooLarge {
		t.Errorf("Размер должен проверяться до формата, получен вид %q", kind)
	}
}

func TestValidate_Format(t *testing.T) {
	v := NewAudioValidator(config.DefaultUploadConfig())

	// Расширение сравнивается без учета регистра
	for _, name := range []string{"cough.wav", "cough.WAV", "cough.Mp3", "cough.webm", "cough.ogg", "cough.m4a"} {
		if err := v.Validate(name, 1024, ""); err != nil {
			t.Errorf("Файл %q должен проходить, получена ошибка: %v", name, err)
		}
	}

	for _, name := range []string{"cough.flac", "cough.txt", "cough", "cough.wav.exe"} {
		err := v.Validate(name, 1024, "")
		if err == nil {
			t.Errorf("Файл %q должен отклоняться", name)
			continue
		}
		if kind := validationKind(t, err); kind != domain.ErrKindUnsupportedFormat {
			t.Errorf("Для %q ожидался вид %q, получен %q", name, domain.ErrKindUnsupportedFormat, kind)
		}
	}
}

func TestValidate_MimeType(t *testing.T) {
	v := NewAudioValidator(config.DefaultUploadConfig())

	for _, ct := range []string{"audio/wav", "audio/wave", "audio/x-wav", "audio/mpeg", "audio/mp3", "audio/webm", "audio/ogg", "audio/mp4", "audio/m4a"} {
		if err := v.Validate("cough.wav", 1024, ct); err != nil {
			t.Errorf("Content-type %q должен приниматься, получена ошибка: %v", ct, err)
		}
	}

	err := v.Validate("cough.wav", 1024, "video/mp4")
	if err == nil {
		t.Fatal("Content-type video/mp4 должен отклоняться")
	}
	if kind := validationKind(t, err); kind != domain.ErrKindUnsupportedMimeType {
		t.Errorf("Ожидался вид %q, получен %q", domain.ErrKindUnsupportedMimeType, kind)
	}

	// Отсутствие content-type не является ошибкой
	if err := v.Validate("cough.wav", 1024, ""); err != nil {
		t.Errorf("Пустой content-type должен приниматься, получена ошибка: %v", err)
	}
}

func TestFileFormat(t *testing.T) {
	cases := map[string]string{
		"cough.wav":     "wav",
		"cough.WAV":     "wav",
		"a.b.mp3":       "mp3",
		"noextension":   "",
		"recording.M4A": "m4a",
	}
	for name, want := range cases {
		if got := FileFormat(name); got != want {
			t.Errorf("FileFormat(%q) = %q, ожидалось %q", name, got, want)
		}
	}
}

func TestValidateAnonymousName(t *testing.T) {
	for _, name := range []string{"cough_01", "ab", "User-42", strings.Repeat("x", 50)} {
		if err := ValidateAnonymousName(name); err != nil {
			t.Errorf("Имя %q должно приниматься, получена ошибка: %v", name, err)
		}
	}

	for _, name := range []string{"", "a", "имя", "has space", "dot.name", strings.Repeat("x", 51)} {
		if err := ValidateAnonymousName(name); err == nil {
			t.Errorf("Имя %q должно отклоняться", name)
		}
	}
}

func TestValidateRecordingMethod(t *testing.T) {
	if err := ValidateRecordingMethod(domain.MethodBrowser); err != nil {
		t.Errorf("Метод browser должен приниматься: %v", err)
	}
	if err := ValidateRecordingMethod(domain.MethodUpload); err != nil {
		t.Errorf("Метод upload должен приниматься: %v", err)
	}
	if err := ValidateRecordingMethod("stream"); err == nil {
		t.Error("Неизвестный метод должен отклоняться")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"cough.wav":            "cough.wav",
		"../../etc/passwd.wav": "passwd.wav",
		`my<file>.mp3`:         "my_file_.mp3",
		strings.Repeat("a", 150) + ".ogg": strings.Repeat("a", 100) + ".ogg",
	}
	for in, want := range cases {
		if got := sanitizeFileName(in); got != want {
			t.Errorf("sanitizeFileName(%q) = %q, ожидалось %q", in, got, want)
		}
	}
}
