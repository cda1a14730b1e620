// Package seed загружает учетные записи из YAML файла.
// Используется командой migrator seed и при старте с хранилищем в памяти.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/Ultrahd-dev/assignment-portal/backend/internal/apperrors"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/logging"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/users"
	"github.com/Ultrahd-dev/assignment-portal/backend/internal/validation"
)

// File содержимое файла начальных данных
type File struct {
	Admins    []users.CreateAdminInput    `yaml:"admins"`
	Lecturers []users.CreateLecturerInput `yaml:"lecturers"`
	Students  []users.CreateStudentInput  `yaml:"students"`
}

// Result сколько записей создано и сколько уже существовало
type Result struct {
	Created int
	Skipped int
}

// Decode читает File из YAML
func Decode(r io.Reader) (*File, error) {
	f := &File{}
	if err := yaml.NewDecoder(r).Decode(f); err != nil {
		if err == io.EOF {
			return f, nil
		}
		return nil, fmt.Errorf("ошибка разбора файла начальных данных: %w", err)
	}
	return f, nil
}

// LoadFile открывает и разбирает файл начальных данных
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Validate проверяет все записи до записи первой из них
func (f *File) Validate() error {
	for i := range f.Admins {
		if err := validation.ValidateStruct(&f.Admins[i]); err != nil {
			return fmt.Errorf("admins[%d]: %w", i, err)
		}
	}
	for i := range f.Lecturers {
		if err := validation.ValidateStruct(&f.Lecturers[i]); err != nil {
			return fmt.Errorf("lecturers[%d]: %w", i, err)
		}
	}
	for i := range f.Students {
		if err := validation.ValidateStruct(&f.Students[i]); err != nil {
			return fmt.Errorf("students[%d]: %w", i, err)
		}
	}
	return nil
}

// Apply создает учетные записи. Существующие записи пропускаются,
// поэтому повторный запуск безопасен.
func Apply(ctx context.Context, svc *users.Service, f *File) (Result, error) {
	var res Result
	if err := f.Validate(); err != nil {
		return res, err
	}

	count := func(what string, err error) error {
		switch {
		case err == nil:
			res.Created++
		case apperrors.KindOf(err) == apperrors.KindConflict:
			logging.Ctx(ctx).Debug().Str("account", what).Msg("seed: account exists, skipped")
			res.Skipped++
		default:
			return fmt.Errorf("%s: %w", what, err)
		}
		return nil
	}

	for _, in := range f.Admins {
		_, err := svc.CreateAdmin(ctx, in)
		if err := count(in.Email, err); err != nil {
			return res, err
		}
	}
	for _, in := range f.Lecturers {
		_, err := svc.CreateLecturer(ctx, in)
		if err := count(in.Email, err); err != nil {
			return res, err
		}
	}
	for _, in := range f.Students {
		_, err := svc.CreateStudent(ctx, in)
		if err := count(in.RegNo, err); err != nil {
			return res, err
		}
	}
	return res, nil
}
