package dataset

// Dataset is a named collection of input rows a test runs against.
type Dataset struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Rows        []Row  `yaml:"rows"`
}

// Row is one test input: template variables, an optional literal user
// message, and an optional reference answer for judge criteria.
type Row struct {
	ID          string         `yaml:"id"`
	Variables   map[string]any `yaml:"variables,omitempty"`
	UserMessage string         `yaml:"user_message,omitempty"`
	Reference   string         `yaml:"reference,omitempty"`
}
