package pipeline

import "github.com/mihaimyh/promptstudio/pkg/ledger"

// Charge says when a step's cost is recorded.
type Charge int

const (
	// ChargeOnSuccess records the actual cost only when the call returned a usable result.
	ChargeOnSuccess Charge = iota
	// ChargeOnAttempt records the declared cost whenever the call was issued.
	ChargeOnAttempt
)

func (c Charge) String() string {
	if c == ChargeOnAttempt {
		return "on_attempt"
	}
	return "on_success"
}

// Cost is an amount of one metered resource.
type Cost struct {
	Kind   ledger.Kind `json:"kind"`
	Amount int         `json:"amount"`
}

// Step is one capability call within a workflow.
// A failed Fatal step ends the run; a failed best-effort step degrades to a sentinel.
type Step struct {
	Name   string `json:"name"`
	Cost   Cost   `json:"cost"`
	Fatal  bool   `json:"fatal"`
	Charge Charge `json:"-"`
}

// Workflow declares the gate and the steps of one pipeline.
// For image generation the gate amount is the requested image count.
type Workflow struct {
	Name  string `json:"name"`
	Gate  Cost   `json:"gate"`
	Steps []Step `json:"steps"`
}

// Step returns the declared step called name.
func (w Workflow) Step(name string) Step {
	for _, s := range w.Steps {
		if s.Name == name {
			return s
		}
	}
	panic("pipeline: workflow " + w.Name + " has no step " + name)
}

// Workflow names.
const (
	WorkflowImages    = "images"
	WorkflowTranslate = "translate"
	WorkflowIdea      = "idea"
	WorkflowRandom    = "random"
	WorkflowOptimize  = "optimize"
	WorkflowDetailed  = "detailed"
	WorkflowCheck     = "check"
	WorkflowChat      = "chat"
	WorkflowChatImage = "chat_image"
)

var (
	text1 = Cost{Kind: ledger.KindText, Amount: 1}

	imagesWorkflow = Workflow{
		Name: WorkflowImages,
		Gate: Cost{Kind: ledger.KindImage, Amount: DefaultImageCount},
		Steps: []Step{
			{Name: "generate_images", Cost: Cost{Kind: ledger.KindImage, Amount: DefaultImageCount}, Fatal: true, Charge: ChargeOnSuccess},
		},
	}
	translateWorkflow = Workflow{
		Name: WorkflowTranslate,
		Gate: Cost{Kind: ledger.KindText, Amount: 3},
		Steps: []Step{
			{Name: "detect", Cost: text1, Fatal: true, Charge: ChargeOnAttempt},
			{Name: "translate", Cost: text1, Charge: ChargeOnAttempt},
			{Name: "translate", Cost: text1, Charge: ChargeOnAttempt},
		},
	}
	ideaWorkflow = Workflow{
		Name: WorkflowIdea,
		Gate: Cost{Kind: ledger.KindText, Amount: 2},
		Steps: []Step{
			{Name: "generate", Cost: text1, Fatal: true, Charge: ChargeOnSuccess},
			{Name: "translate", Cost: text1, Charge: ChargeOnAttempt},
		},
	}
	randomWorkflow = Workflow{
		Name:  WorkflowRandom,
		Gate:  ideaWorkflow.Gate,
		Steps: ideaWorkflow.Steps,
	}
	optimizeWorkflow = Workflow{
		Name:  WorkflowOptimize,
		Gate:  text1,
		Steps: []Step{{Name: "optimize", Cost: text1, Fatal: true, Charge: ChargeOnSuccess}},
	}
	// The prompt is composed locally, so only the translation call is gated
	// and charged: one unit, not two.
	detailedWorkflow = Workflow{
		Name:  WorkflowDetailed,
		Gate:  text1,
		Steps: []Step{{Name: "translate", Cost: text1, Charge: ChargeOnAttempt}},
	}
	checkWorkflow = Workflow{
		Name:  WorkflowCheck,
		Gate:  text1,
		Steps: []Step{{Name: "analyze", Cost: text1, Fatal: true, Charge: ChargeOnSuccess}},
	}
	chatWorkflow = Workflow{
		Name:  WorkflowChat,
		Gate:  text1,
		Steps: []Step{{Name: "reply", Cost: text1, Fatal: true, Charge: ChargeOnSuccess}},
	}
	chatImageWorkflow = Workflow{
		Name:  WorkflowChatImage,
		Gate:  text1,
		Steps: []Step{{Name: "describe", Cost: text1, Fatal: true, Charge: ChargeOnSuccess}},
	}
)

// Workflows returns every declared workflow.
func Workflows() []Workflow {
	return []Workflow{
		imagesWorkflow, translateWorkflow, ideaWorkflow, randomWorkflow,
		optimizeWorkflow, detailedWorkflow, checkWorkflow, chatWorkflow, chatImageWorkflow,
	}
}

// Lookup returns the declared workflow called name.
func Lookup(name string) (Workflow, bool) {
	for _, w := range Workflows() {
		if w.Name == name {
			return w, true
		}
	}
	return Workflow{}, false
}
