package screening

// Form is the raw formData object of an inbound request.
type Form map[string]any

// Form keys.
const (
	FieldCameraType            = "cameraType"
	FieldCustomCameraType      = "customCameraType"
	FieldAge                   = "age"
	FieldGender                = "gender"
	FieldDiabetesHistory       = "diabetesHistory"
	FieldFamilyDiabetesHistory = "familyDiabetesHistory"
	FieldWeight                = "weight"
	FieldHeight                = "height"
)

// Camera models accepted by the form. CameraOther requires customCameraType.
const (
	CameraTopconNW400 = "Topcon NW400"
	CameraCanonCX1    = "Canon CX-1"
	CameraOptos       = "Optos Daytona Plus"
	CameraOther       = "Other"
)

var (
	CameraTypes   = []string{CameraTopconNW400, CameraCanonCX1, CameraOptos, CameraOther}
	Genders       = []string{"Female", "Male", "Non-binary"}
	HistoryValues = []string{"Yes", "No", "Unknown"}
)

// requiredFields keeps the order used in "missing required fields" messages.
var requiredFields = []string{
	FieldCameraType,
	FieldAge,
	FieldGender,
	FieldDiabetesHistory,
	FieldFamilyDiabetesHistory,
	FieldWeight,
	FieldHeight,
}

const (
	MinAge, MaxAge       = 0, 160
	MinWeight, MaxWeight = 0.0, 500.0
	MinHeight, MaxHeight = 0.0, 300.0
)

// Screening is a fully validated request. It only exists once every field check passed.
type Screening struct {
	CameraType            string  `json:"cameraType"`
	CustomCameraType      string  `json:"customCameraType,omitempty"`
	Age                   int     `json:"age"`
	Gender                string  `json:"gender"`
	DiabetesHistory       string  `json:"diabetesHistory"`
	FamilyDiabetesHistory string  `json:"familyDiabetesHistory"`
	Weight                float64 `json:"weight"`
	Height                float64 `json:"height"`
}

// ResolvedCameraType substitutes the custom model for CameraOther.
func (s *Screening) ResolvedCameraType() string {
	if s.CameraType == CameraOther {
		return s.CustomCameraType
	}
	return s.CameraType
}

// AgeGroup buckets age by decade ("40-49"), used as a low-cardinality metric tag.
func (s *Screening) AgeGroup() string {
	lower := s.Age / 10 * 10
	if lower >= 100 {
		return "100+"
	}
	return itoa(lower) + "-" + itoa(lower+9)
}

// Outcome is the diagnosis verdict. Produced once per successful run.
type Outcome struct {
	Result     bool    `json:"diagnose"`
	Confidence float64 `json:"confidence"`
}
