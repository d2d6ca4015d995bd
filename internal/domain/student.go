package domain

// TransactionRecord is an incoming student demographic record to be resolved
// against the master registry.
type TransactionRecord struct {
	// Legal names as submitted
	Surname    string `json:"surname"`
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName,omitempty"`

	// Usual-name variants
	UsualSurname string `json:"usualSurname,omitempty"`
	UsualGiven   string `json:"usualGiven,omitempty"`
	UsualMiddle  string `json:"usualMiddle,omitempty"`

	// Date of birth as an 8-digit YYYYMMDD string
	DOB string `json:"dob"`

	// Sex code ("M", "F", "X")
	Sex string `json:"sex"`

	// School code (mincode) and the school's local student identifier
	Mincode string `json:"mincode,omitempty"`
	LocalID string `json:"localId,omitempty"`

	PostalCode string `json:"postalCode,omitempty"`

	// PEN is the claimed identifier, if the submitter supplied one.
	PEN string `json:"pen,omitempty"`

	// UpdateCode selects the processing branch: normal, search-only,
	// or assign-new-identifier.
	UpdateCode string `json:"updateCode,omitempty"`

	// ApplicationCode enables the categorical override rules when set
	// to ApplicationSpecial.
	ApplicationCode string `json:"applicationCode,omitempty"`

	// Derived holds fields computed once per request before scoring.
	// Input fields above are never modified after derivation.
	Derived Derived `json:"-"`
}

// Update codes.
const (
	UpdateCodeNormal     = ""
	UpdateCodeSearchOnly = "S"
	UpdateCodeAssignNew  = "Y"
)

// ApplicationSpecial enables the categorical matcher's override rules.
const ApplicationSpecial = "SPECIAL"

// Derived holds per-request fields computed from the input record.
type Derived struct {
	// Names is the normalized name-set for the categorical path.
	Names NameSet

	// LegacyNames keeps punctuation intact for the legacy point scorer;
	// the two algorithms intentionally normalize differently.
	LegacyNames NameSet

	// PartialSurname is the blocking prefix of the normalized surname,
	// clamped to SurnameSize characters.
	PartialSurname string

	// SurnameSize is the blocking prefix width, 4 to 6.
	SurnameSize int

	// PartialGiven is the given-name prefix used when blocking narrows
	// by given name.
	PartialGiven string

	// Surname frequency counts from the registry.
	FullSurnameFrequency    int
	PartialSurnameFrequency int
}

// NameSet is the canonical set of name variants for one record. One instance
// is derived for the transaction and one per candidate evaluated.
type NameSet struct {
	Surname string
	Given   string
	Middle  string

	UsualSurname string
	UsualGiven   string
	UsualMiddle  string

	// A compound given name splits on the first space, else the first
	// hyphen: AltMiddle takes the trailing part, AltGiven keeps the
	// unsplit form as its own variant.
	AltGiven  string
	AltMiddle string

	// Nicknames holds up to four known variants of the given name.
	Nicknames []string
}

// GivenVariants returns every non-blank form the given name may take,
// nicknames last.
func (n *NameSet) GivenVariants() []string {
	var out []string
	for _, v := range []string{n.Given, n.UsualGiven, n.AltGiven} {
		if v != "" {
			out = append(out, v)
		}
	}
	return append(out, n.Nicknames...)
}

// MiddleVariants returns every non-blank form the middle name may take.
func (n *NameSet) MiddleVariants() []string {
	var out []string
	for _, v := range []string{n.Middle, n.UsualMiddle, n.AltMiddle} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// StudentStatus is the lifecycle state of a master registry record.
type StudentStatus string

const (
	StatusActive   StudentStatus = "A"
	StatusMerged   StudentStatus = "M"
	StatusDeceased StudentStatus = "D"
)

// CandidateRecord is one master-population row considered during matching.
type CandidateRecord struct {
	PEN string `json:"pen"`

	Surname    string `json:"surname"`
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName,omitempty"`

	UsualSurname string `json:"usualSurname,omitempty"`
	UsualGiven   string `json:"usualGiven,omitempty"`
	UsualMiddle  string `json:"usualMiddle,omitempty"`

	DOB        string `json:"dob"`
	Sex        string `json:"sex"`
	Mincode    string `json:"mincode,omitempty"`
	LocalID    string `json:"localId,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`

	Status StudentStatus `json:"status"`

	// TruePEN is the surviving identifier when Status is merged.
	TruePEN string `json:"truePen,omitempty"`

	// LocalIDTrimmed is the local ID with leading zeros and blanks
	// stripped, used for local-ID comparison.
	LocalIDTrimmed string `json:"-"`
}
