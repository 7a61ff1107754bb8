package marker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidReport is returned for a report output that is neither third
// party nor carries a local path.
var ErrInvalidReport = errors.New("Script execution failed. The set-output report setting is incorrect. Please check") //nolint:staticcheck // user-facing message

// ReportClass is the resolved shape of a report output.
type ReportClass int

const (
	ReportThirdParty ReportClass = iota + 1
	ReportLocal
)

// ClassifyReport decides how a report output is published.
// A reportType containing THIRDPARTY wins over a path.
func ClassifyReport(path, reportType string) (ReportClass, error) {
	switch {
	case strings.Contains(reportType, "THIRDPARTY"):
		return ReportThirdParty, nil
	case strings.TrimSpace(path) != "":
		return ReportLocal, nil
	default:
		return 0, ErrInvalidReport
	}
}

// QualityType is the data type of a quality gate value.
type QualityType string

const (
	QualityInt     QualityType = "INT"
	QualityFloat   QualityType = "FLOAT"
	QualityBoolean QualityType = "BOOLEAN"
)

// InferQualityType infers the type of a gate value: integer first, then
// float, then the literals true and false.
func InferQualityType(v string) (QualityType, error) {
	if _, err := strconv.Atoi(v); err == nil {
		return QualityInt, nil
	}
	if _, err := strconv.ParseFloat(v, 32); err == nil {
		return QualityFloat, nil
	}
	if v == "true" || v == "false" {
		return QualityBoolean, nil
	}
	return "", fmt.Errorf("gateWay error qualityDataType: %s,only support INT、FLOAT、BOOLEAN", v)
}
