package screening

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"aeye-server-go/internal/platform/errors"
)

const opValidate = "screening.validate"

// Validate checks the form in a fixed order and stops at the first failing
// step. Within a step every violation is reported.
func Validate(form Form) (*Screening, error) {
	if missing := missingFields(form); len(missing) > 0 {
		return nil, reject("missing required fields: " + strings.Join(missing, ", "))
	}

	camera := text(form[FieldCameraType])
	if !slices.Contains(CameraTypes, camera) {
		return nil, reject(fmt.Sprintf("cameraType must be one of %s", strings.Join(CameraTypes, ", ")))
	}
	custom := text(form[FieldCustomCameraType])
	if camera == CameraOther && custom == "" {
		return nil, reject("customCameraType is required when cameraType is Other")
	}
	if camera == CameraOther && strings.IndexFunc(custom, unicode.IsControl) >= 0 {
		return nil, reject("customCameraType must not contain control characters")
	}

	age, ageOK := number(form[FieldAge])
	weight, weightOK := number(form[FieldWeight])
	height, heightOK := number(form[FieldHeight])
	var nonNumeric []string
	if !ageOK {
		nonNumeric = append(nonNumeric, FieldAge)
	}
	if !weightOK {
		nonNumeric = append(nonNumeric, FieldWeight)
	}
	if !heightOK {
		nonNumeric = append(nonNumeric, FieldHeight)
	}
	if len(nonNumeric) > 0 {
		return nil, reject("age, weight and height must be numeric (invalid: " + strings.Join(nonNumeric, ", ") + ")")
	}

	var problems []string
	switch {
	case age < MinAge || age > MaxAge:
		problems = append(problems, fmt.Sprintf("age must be between %d and %d", MinAge, MaxAge))
	case age != math.Trunc(age):
		problems = append(problems, "age must be a whole number")
	}
	if weight < MinWeight || weight > MaxWeight {
		problems = append(problems, fmt.Sprintf("weight must be between %g and %g", MinWeight, MaxWeight))
	}
	if height < MinHeight || height > MaxHeight {
		problems = append(problems, fmt.Sprintf("height must be between %g and %g", MinHeight, MaxHeight))
	}

	gender := text(form[FieldGender])
	if !slices.Contains(Genders, gender) {
		problems = append(problems, "gender must be one of "+strings.Join(Genders, ", "))
	}
	history := text(form[FieldDiabetesHistory])
	if !slices.Contains(HistoryValues, history) {
		problems = append(problems, "diabetesHistory must be one of "+strings.Join(HistoryValues, ", "))
	}
	family := text(form[FieldFamilyDiabetesHistory])
	if !slices.Contains(HistoryValues, family) {
		problems = append(problems, "familyDiabetesHistory must be one of "+strings.Join(HistoryValues, ", "))
	}
	if len(problems) > 0 {
		return nil, reject(strings.Join(problems, "; "))
	}

	s := &Screening{
		CameraType:            camera,
		Age:                   int(age),
		Gender:                gender,
		DiabetesHistory:       history,
		FamilyDiabetesHistory: family,
		Weight:                weight,
		Height:                height,
	}
	if camera == CameraOther {
		s.CustomCameraType = custom
	}
	return s, nil
}

func reject(msg string) error {
	return errors.New(errors.KindValidation, opValidate, msg)
}

func missingFields(form Form) []string {
	var missing []string
	for _, key := range requiredFields {
		if isEmpty(form[key]) {
			missing = append(missing, key)
		}
	}
	return missing
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// number accepts JSON numbers as well as numeric strings, since HTML forms send both.
func number(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
