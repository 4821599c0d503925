package objective

type ObjectiveStatus string

const (
	StatusActive    ObjectiveStatus = "ACTIVE"
	StatusCompleted ObjectiveStatus = "COMPLETED"
	StatusArchived  ObjectiveStatus = "ARCHIVED"
	StatusAbandoned ObjectiveStatus = "ABANDONED"
)

var AllStatuses = []ObjectiveStatus{
	StatusActive,
	StatusCompleted,
	StatusArchived,
	StatusAbandoned,
}

func (s ObjectiveStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

var transitions = map[ObjectiveStatus][]ObjectiveStatus{
	StatusActive:    {StatusCompleted, StatusArchived, StatusAbandoned},
	StatusCompleted: {StatusArchived},
	StatusArchived:  {StatusActive},
}

// CanTransition reports whether the objective state machine allows from -> to.
func CanTransition(from, to ObjectiveStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryCareer    Category = "CAREER"
	CategoryEducation Category = "EDUCATION"
	CategoryHealth    Category = "HEALTH"
	CategoryFinance   Category = "FINANCE"
	CategoryPersonal  Category = "PERSONAL"
	CategoryOther     Category = "OTHER"
)

var AllCategories = []Category{
	CategoryCareer,
	CategoryEducation,
	CategoryHealth,
	CategoryFinance,
	CategoryPersonal,
	CategoryOther,
}

func (c Category) IsValid() bool {
	for _, v := range AllCategories {
		if c == v {
			return true
		}
	}
	return false
}
