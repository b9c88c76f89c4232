package settings

import "testing"

func TestDefaultIsValid(t *testing.T) {
	store := NewStore()
	if err := store.Update(Default()); err != nil {
		t.Fatalf("default settings must validate: %v", err)
	}
}

func TestUpdateValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid change", func(s *Settings) { s.Sensitivity = 0.7; s.MaxFaces = 10 }, false},
		{"sensitivity too low", func(s *Settings) { s.Sensitivity = 0.05 }, true},
		{"sensitivity too high", func(s *Settings) { s.Sensitivity = 0.95 }, true},
		{"max faces zero", func(s *Settings) { s.MaxFaces = 0 }, true},
		{"max faces too high", func(s *Settings) { s.MaxFaces = 11 }, true},
		{"retries zero", func(s *Settings) { s.MaxDetectRetries = 0 }, true},
		{"boundary values", func(s *Settings) { s.Sensitivity = 0.1; s.MaxFaces = 1; s.MaxDetectRetries = 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			next := store.Get()
			tt.mutate(&next)

			err := store.Update(next)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateKeepsPriorOnFailure(t *testing.T) {
	store := NewStore()

	valid := store.Get()
	valid.Sensitivity = 0.8
	if err := store.Update(valid); err != nil {
		t.Fatalf("valid update failed: %v", err)
	}

	invalid := store.Get()
	invalid.MaxFaces = 50
	if err := store.Update(invalid); err == nil {
		t.Fatal("expected validation error")
	}

	if got := store.Get(); got.Sensitivity != 0.8 || got.MaxFaces != 5 {
		t.Errorf("prior settings not preserved: %+v", got)
	}
}
