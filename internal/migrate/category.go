package migrate

// Category is the semantic tag the classifier assigns to a legacy artifact.
type Category string

// Categories produced by the rule table. The set is closed.
const (
	CategoryStatus         Category = "status"
	CategoryPackageManaged Category = "package_managed"

	// Subdirectory-derived categories
	CategoryADR         Category = "adr"
	CategoryArchive     Category = "archive"
	CategoryOperations  Category = "operations"
	CategoryGuide       Category = "guide"
	CategoryReference   Category = "reference"
	CategoryAPI         Category = "api"
	CategoryIntegration Category = "integration"
	CategoryTesting     Category = "testing"

	// Filename-derived categories (some are also reached through a subdirectory rule)
	CategoryStory           Category = "story"
	CategorySprintPlan      Category = "sprint_plan"
	CategoryPRD             Category = "prd"
	CategoryArchitecture    Category = "architecture"
	CategoryReadinessReport Category = "readiness_report"
	CategoryGateCheck       Category = "gate_check"
	CategoryE2ETestPlan     Category = "e2e_test_plan"
	CategoryOptimization    Category = "optimization"
	CategoryEpics           Category = "epics"
	CategoryProductBrief    Category = "product_brief"
	CategoryUXDesign        Category = "ux_design"
	CategoryTechSpec        Category = "tech_spec"
	CategoryResearch        Category = "research"
	CategoryBrainstorm      Category = "brainstorm"
	CategoryProjectContext  Category = "project_context"
	CategoryReview          Category = "review"
	CategoryUserGuide       Category = "user_guide"
	CategoryTestPlan        Category = "test_plan"
	CategoryChangelog       Category = "changelog"
)

// Phase is the presentation group a category is listed under in the report.
type Phase string

const (
	PhaseAnalysis       Phase = "Analysis"
	PhasePlanning       Phase = "Planning"
	PhaseSolutioning    Phase = "Solutioning"
	PhaseImplementation Phase = "Implementation"
	PhaseOutputs        Phase = "Outputs"
	PhaseContext        Phase = "Context"
	PhaseStatusFiles    Phase = "Status Files"
	PhasePackageManaged Phase = "Package Managed"
	PhaseOther          Phase = "Other"
)

// PhaseOrder is the order groups appear in a report.
var PhaseOrder = []Phase{
	PhaseAnalysis,
	PhasePlanning,
	PhaseSolutioning,
	PhaseImplementation,
	PhaseOutputs,
	PhaseContext,
	PhaseStatusFiles,
	PhasePackageManaged,
	PhaseOther,
}

var categoryPhases = map[Category]Phase{
	CategoryProductBrief: PhaseAnalysis,
	CategoryResearch:     PhaseAnalysis,
	CategoryBrainstorm:   PhaseAnalysis,

	CategoryPRD:      PhasePlanning,
	CategoryEpics:    PhasePlanning,
	CategoryUXDesign: PhasePlanning,

	CategoryArchitecture:    PhaseSolutioning,
	CategoryADR:             PhaseSolutioning,
	CategoryTechSpec:        PhaseSolutioning,
	CategoryReadinessReport: PhaseSolutioning,
	CategoryGateCheck:       PhaseSolutioning,
	CategoryAPI:             PhaseSolutioning,
	CategoryIntegration:     PhaseSolutioning,

	CategoryStory:       PhaseImplementation,
	CategorySprintPlan:  PhaseImplementation,
	CategoryReview:      PhaseImplementation,
	CategoryTestPlan:    PhaseImplementation,
	CategoryE2ETestPlan: PhaseImplementation,
	CategoryTesting:     PhaseImplementation,

	CategoryOptimization: PhaseOutputs,
	CategoryArchive:      PhaseOutputs,

	CategoryProjectContext: PhaseContext,
	CategoryUserGuide:      PhaseContext,
	CategoryChangelog:      PhaseContext,
	CategoryGuide:          PhaseContext,
	CategoryReference:      PhaseContext,
	CategoryOperations:     PhaseContext,

	CategoryStatus:         PhaseStatusFiles,
	CategoryPackageManaged: PhasePackageManaged,
}

// PhaseOf returns the report group for a category. Unknown categories land in Other.
// It is only used for presentation, never for execution decisions.
func PhaseOf(c Category) Phase {
	if p, ok := categoryPhases[c]; ok {
		return p
	}
	return PhaseOther
}

func phaseRank(p Phase) int {
	for i, candidate := range PhaseOrder {
		if candidate == p {
			return i
		}
	}
	return len(PhaseOrder)
}
