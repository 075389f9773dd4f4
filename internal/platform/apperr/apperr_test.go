package apperr

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", ErrTransient, true},
		{"wrapped transient", fmt.Errorf("redis: %w", ErrTransient), true},
		{"unclassified io error", errors.New("connection reset by peer"), true},
		{"invalid argument", fmt.Errorf("%w: bad payload", ErrInvalidArgument), false},
		{"not found", ErrNotFound, false},
		{"normalization", fmt.Errorf("%w: not JSON", ErrNormalization), false},
		{"analysis", ErrAnalysis, false},
		{"correlation", ErrCorrelation, false},
		{"export", ErrExport, false},
		{"fatal", ErrFatal, false},
		{"duplicate key", gorm.ErrDuplicatedKey, false},
		{"wrapped duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), false},
	}
	for _, tc := range cases {
		if got := Transient(tc.err); got != tc.want {
			t.Errorf("%s: Transient(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}
