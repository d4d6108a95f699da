package templates

// FunctionTemplates is one embedded YAML file: a business function and the
// reference policies available for it.
type FunctionTemplates struct {
	Function string   `yaml:"function"`
	Policies []Policy `yaml:"policies"`
}

// Policy is a reference policy whose outline can seed a new draft.
// Keywords drive the similarity match against the draft description.
type Policy struct {
	PolicyID string          `yaml:"policy_id"`
	Title    string          `yaml:"title"`
	Keywords []string        `yaml:"keywords"`
	Topics   []TemplateTopic `yaml:"topics"`
}

// TemplateTopic is an outline node in a reference policy. The id becomes
// the seeded node's source id, linking generated sections back to the
// reference material they came from.
type TemplateTopic struct {
	ID        string             `yaml:"id"`
	Title     string             `yaml:"title"`
	Subtopics []TemplateSubtopic `yaml:"subtopics"`
}

type TemplateSubtopic struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}
