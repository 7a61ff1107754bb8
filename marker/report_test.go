package marker

import (
	"errors"
	"testing"
)

func TestClassifyReport(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		reportType string
		want       ReportClass
		wantErr    error
	}{
		{"third party", "", "THIRDPARTY", ReportThirdParty, nil},
		{"third party wins over path", "out/", "THIRDPARTY", ReportThirdParty, nil},
		{"local", "out/", "", ReportLocal, nil},
		{"blank path", "  ", "INTERNAL", 0, ErrInvalidReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyReport(tt.path, tt.reportType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("class = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferQualityType(t *testing.T) {
	tests := []struct {
		in      string
		want    QualityType
		wantErr bool
	}{
		{"3", QualityInt, false},
		{"-12", QualityInt, false},
		{"0.9", QualityFloat, false},
		{"1e3", QualityFloat, false},
		{"true", QualityBoolean, false},
		{"false", QualityBoolean, false},
		{"TRUE", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := InferQualityType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("InferQualityType(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("InferQualityType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
