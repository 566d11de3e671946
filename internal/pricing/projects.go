package pricing

// Defaults applied when a visitor has not entered a size yet.
const (
	DefaultRoofingSqft  = 1800
	DefaultSidingSqft   = 1800
	DefaultDeckSqft     = 300
	DefaultKitchenSqft  = 200
	DefaultAdditionSqft = 400
	DefaultWindowCount  = 10

	// roofAreaFactor converts home square footage into roof surface.
	roofAreaFactor = 1.2
)

type addend struct {
	label string
	r     rates
}

type factor struct {
	label string
	f     float64
}

var yesNo = map[string]bool{"yes": true, "no": false}

// Roofing.

var (
	roofBaseRate = rates{5.5, 6.5, 8}

	roofMaterials = map[string]addend{
		"asphalt":       {"Asphalt shingles", rates{0, 0, 0}},
		"architectural": {"Architectural shingles", rates{0.75, 1, 1.5}},
		"metal":         {"Standing-seam metal", rates{4, 5.5, 7}},
		"tile":          {"Tile", rates{6, 7.5, 9}},
		"slate":         {"Slate", rates{8, 10, 12}},
	}

	roofComplexity = map[string]factor{
		"simple":   {"Simple roof line", 1},
		"moderate": {"Moderate roof complexity", 1.1},
		"complex":  {"Complex roof (steep pitch, many valleys)", 1.25},
	}

	tearOffOptions = map[string]addend{
		"tearOff": {"Tear-off and disposal of existing roof", rates{1500, 2500, 4000}},
		"overlay": {"Overlay on existing roof", rates{0, 0, 0}},
	}
)

// RoofingDetails is the scope of a roof replacement. SquareFeet is the
// home's footprint; roof surface is derived from it.
type RoofingDetails struct {
	SquareFeet float64
	RoofType   string
	Complexity string
	TearOff    string
}

func (RoofingDetails) Project() Project { return ProjectRoofing }

func (d RoofingDetails) Fields() map[string]string {
	return putFields(
		"sqft", quantityField(d.SquareFeet),
		"roofType", d.RoofType,
		"roofComplexity", d.Complexity,
		"tearOff", d.TearOff,
	)
}

func (d RoofingDetails) estimate() Bands {
	home := quantityOr(d.SquareFeet, DefaultRoofingSqft)
	area := home * roofAreaFactor

	material := roofMaterials[or(d.RoofType, "asphalt")]
	complexity := roofComplexity[or(d.Complexity, "simple")]
	tearOff := tearOffOptions[or(d.TearOff, "tearOff")]

	perSqft := roofBaseRate.add(material.r).scale(complexity.f)
	b := perSqft.scale(area).add(tearOff.r).bands()
	b.BreakdownLines = []string{
		"Roof area: " + formatNumber(area) + " sq ft (" + formatNumber(home) + " sq ft home × 1.2)",
		"Material: " + material.label,
		complexity.label,
		tearOff.label,
	}
	return b
}

// Deck.

var (
	deckMaterials = map[string]addend{
		"pressureTreated": {"Pressure-treated lumber", rates{25, 35, 45}},
		"composite":       {"Composite decking", rates{45, 55, 70}},
		"hardwood":        {"Tropical hardwood", rates{50, 65, 85}},
		"pvc":             {"PVC decking", rates{55, 70, 90}},
	}

	deckHeights = map[string]factor{
		"ground":      {"Ground-level deck", 1},
		"raised":      {"Raised deck", 1.15},
		"secondStory": {"Second-story deck", 1.3},
	}

	deckRailing = rates{2000, 3000, 4500}
)

// DeckDetails is the scope of a new or rebuilt deck.
type DeckDetails struct {
	SquareFeet float64
	Material   string
	Height     string
	Railing    string
}

func (DeckDetails) Project() Project { return ProjectDeck }

func (d DeckDetails) Fields() map[string]string {
	return putFields(
		"sqft", quantityField(d.SquareFeet),
		"deckMaterial", d.Material,
		"deckHeight", d.Height,
		"railing", d.Railing,
	)
}

func (d DeckDetails) estimate() Bands {
	area := quantityOr(d.SquareFeet, DefaultDeckSqft)
	material := deckMaterials[or(d.Material, "pressureTreated")]
	height := deckHeights[or(d.Height, "ground")]

	r := material.r.scale(height.f).scale(area)
	lines := []string{
		"Deck area: " + formatNumber(area) + " sq ft",
		"Material: " + material.label,
		height.label,
	}
	if yesNo[d.Railing] {
		r = r.add(deckRailing)
		lines = append(lines, "Railing package included")
	}

	b := r.bands()
	b.BreakdownLines = lines
	return b
}

// Bathroom.

var (
	bathTypes = map[string]addend{
		"half":    {"Half bath", rates{8000, 12000, 18000}},
		"full":    {"Full bath", rates{15000, 25000, 40000}},
		"primary": {"Primary suite bath", rates{25000, 40000, 65000}},
	}

	finishLevels = map[string]factor{
		"standard": {"Standard finishes", 1},
		"upgraded": {"Upgraded finishes", 1.2},
		"luxury":   {"Luxury finishes", 1.5},
	}
)

// BathroomDetails is the scope of a bathroom remodel.
type BathroomDetails struct {
	BathType string
	Finish   string
}

func (BathroomDetails) Project() Project { return ProjectBathroom }

func (d BathroomDetails) Fields() map[string]string {
	return putFields("bathType", d.BathType, "bathFinish", d.Finish)
}

func (d BathroomDetails) estimate() Bands {
	bath := bathTypes[or(d.BathType, "full")]
	finish := finishLevels[or(d.Finish, "standard")]

	b := bath.r.scale(finish.f).bands()
	b.BreakdownLines = []string{bath.label, finish.label}
	return b
}

// Kitchen.

var (
	kitchenRate = rates{150, 175, 200}

	layoutChanges = map[string]addend{
		"keep":     {"Existing layout kept", rates{0, 0, 0}},
		"relocate": {"Plumbing and appliances relocated", rates{5000, 8000, 12000}},
	}
)

// KitchenDetails is the scope of a kitchen remodel.
type KitchenDetails struct {
	SquareFeet   float64
	Finish       string
	LayoutChange string
}

func (KitchenDetails) Project() Project { return ProjectKitchen }

func (d KitchenDetails) Fields() map[string]string {
	return putFields(
		"sqft", quantityField(d.SquareFeet),
		"kitchenFinish", d.Finish,
		"layoutChange", d.LayoutChange,
	)
}

func (d KitchenDetails) estimate() Bands {
	area := quantityOr(d.SquareFeet, DefaultKitchenSqft)
	finish := finishLevels[or(d.Finish, "standard")]
	layout := layoutChanges[or(d.LayoutChange, "keep")]

	b := kitchenRate.scale(finish.f).scale(area).add(layout.r).bands()
	b.BreakdownLines = []string{
		"Kitchen area: " + formatNumber(area) + " sq ft",
		finish.label,
		layout.label,
	}
	return b
}

// Siding.

var (
	sidingMaterials = map[string]addend{
		"vinyl":       {"Vinyl siding", rates{4, 6, 8}},
		"fiberCement": {"Fiber-cement siding", rates{7, 9.5, 12}},
		"wood":        {"Wood siding", rates{8, 11, 14}},
		"metal":       {"Metal siding", rates{6, 8, 11}},
	}

	storyFactors = map[string]factor{
		"1": {"Single story", 1},
		"2": {"Two stories", 1.1},
		"3": {"Three stories", 1.25},
	}
)

// SidingDetails is the scope of a siding replacement.
type SidingDetails struct {
	SquareFeet float64
	Material   string
	Stories    string
}

func (SidingDetails) Project() Project { return ProjectSiding }

func (d SidingDetails) Fields() map[string]string {
	return putFields(
		"sqft", quantityField(d.SquareFeet),
		"sidingMaterial", d.Material,
		"stories", d.Stories,
	)
}

func (d SidingDetails) estimate() Bands {
	area := quantityOr(d.SquareFeet, DefaultSidingSqft)
	material := sidingMaterials[or(d.Material, "vinyl")]
	stories := storyFactors[or(d.Stories, "1")]

	b := material.r.scale(stories.f).scale(area).bands()
	b.BreakdownLines = []string{
		"Wall area: " + formatNumber(area) + " sq ft",
		"Material: " + material.label,
		stories.label,
	}
	return b
}

// Windows.

var (
	windowTypes = map[string]addend{
		"vinyl":      {"Vinyl windows", rates{500, 700, 950}},
		"fiberglass": {"Fiberglass windows", rates{800, 1050, 1400}},
		"wood":       {"Wood windows", rates{900, 1200, 1600}},
	}

	installTypes = map[string]factor{
		"insert":    {"Insert installation", 1},
		"fullFrame": {"Full-frame replacement", 1.3},
	}
)

// WindowsDetails is the scope of a window replacement.
type WindowsDetails struct {
	Count       float64
	WindowType  string
	InstallType string
}

func (WindowsDetails) Project() Project { return ProjectWindows }

func (d WindowsDetails) Fields() map[string]string {
	return putFields(
		"windowCount", quantityField(d.Count),
		"windowType", d.WindowType,
		"installType", d.InstallType,
	)
}

func (d WindowsDetails) estimate() Bands {
	count := quantityOr(d.Count, DefaultWindowCount)
	kind := windowTypes[or(d.WindowType, "vinyl")]
	install := installTypes[or(d.InstallType, "insert")]

	b := kind.r.scale(install.f).scale(count).bands()
	b.BreakdownLines = []string{
		formatNumber(count) + " windows",
		kind.label,
		install.label,
	}
	return b
}

// Addition.

var (
	additionRate = rates{200, 275, 350}

	additionTypes = map[string]factor{
		"room":        {"Ground-floor room addition", 1},
		"sunroom":     {"Sunroom", 0.85},
		"secondStory": {"Second-story addition", 1.2},
	}

	additionBathroom = rates{15000, 25000, 40000}
)

// AdditionDetails is the scope of a home addition.
type AdditionDetails struct {
	SquareFeet       float64
	AdditionType     string
	IncludesBathroom string
}

func (AdditionDetails) Project() Project { return ProjectAddition }

func (d AdditionDetails) Fields() map[string]string {
	return putFields(
		"sqft", quantityField(d.SquareFeet),
		"additionType", d.AdditionType,
		"includesBathroom", d.IncludesBathroom,
	)
}

func (d AdditionDetails) estimate() Bands {
	area := quantityOr(d.SquareFeet, DefaultAdditionSqft)
	kind := additionTypes[or(d.AdditionType, "room")]

	r := additionRate.scale(kind.f).scale(area)
	lines := []string{
		"Addition size: " + formatNumber(area) + " sq ft",
		kind.label,
	}
	if yesNo[d.IncludesBathroom] {
		r = r.add(additionBathroom)
		lines = append(lines, "Includes a new bathroom")
	}

	b := r.bands()
	b.BreakdownLines = lines
	return b
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
