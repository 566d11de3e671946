package pricing

import "fmt"

// Project identifies the category of work a visitor wants priced.
type Project string

const (
	ProjectRoofing  Project = "roofing"
	ProjectDeck     Project = "deck"
	ProjectBathroom Project = "bathroom"
	ProjectKitchen  Project = "kitchen"
	ProjectSiding   Project = "siding"
	ProjectWindows  Project = "windows"
	ProjectAddition Project = "addition"
)

// Projects lists every supported project in the order the estimator offers them.
var Projects = []Project{
	ProjectRoofing,
	ProjectDeck,
	ProjectBathroom,
	ProjectKitchen,
	ProjectSiding,
	ProjectWindows,
	ProjectAddition,
}

var projectLabels = map[Project]string{
	ProjectRoofing:  "Roofing",
	ProjectDeck:     "Deck",
	ProjectBathroom: "Bathroom Remodel",
	ProjectKitchen:  "Kitchen Remodel",
	ProjectSiding:   "Siding",
	ProjectWindows:  "Window Replacement",
	ProjectAddition: "Home Addition",
}

// ParseProject converts a wire value into a Project.
func ParseProject(raw string) (Project, error) {
	p := Project(raw)
	if _, ok := projectLabels[p]; !ok {
		return "", fmt.Errorf("unknown project %q", raw)
	}
	return p, nil
}

// Label returns the display name of the project.
func (p Project) Label() string {
	if label, ok := projectLabels[p]; ok {
		return label
	}
	return string(p)
}

// Valid reports whether p is one of the supported projects.
func (p Project) Valid() bool {
	_, ok := projectLabels[p]
	return ok
}
