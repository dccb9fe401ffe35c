package memo

// Context is the input a section generator sees. It is passed by value;
// the With* methods return extended copies and never modify the receiver.
type Context struct {
	Topic     string
	Subject   string
	Objective string
	// Angle is the narrative angle chosen by the hook, reused by later
	// sections.
	Angle    string
	Sections []Section
	// Ideas lists the concept titles already covered.
	Ideas []string
	// Part is the index of the concept being generated.
	Part int
}

// NewContext starts a context for topic.
func NewContext(topic, subject string) Context {
	return Context{Topic: topic, Subject: subject}
}

func (c Context) WithObjective(objective string) Context {
	c.Objective = objective
	return c
}

func (c Context) WithAngle(angle string) Context {
	c.Angle = angle
	return c
}

func (c Context) WithPart(part int) Context {
	c.Part = part
	return c
}

// WithSection returns a copy with s appended. Concept titles are also
// recorded as ideas.
func (c Context) WithSection(s Section) Context {
	sections := make([]Section, len(c.Sections), len(c.Sections)+1)
	copy(sections, c.Sections)
	c.Sections = append(sections, s)

	if s.Type == Concept && s.Titre != "" {
		ideas := make([]string, len(c.Ideas), len(c.Ideas)+1)
		copy(ideas, c.Ideas)
		c.Ideas = append(ideas, s.Titre)
	}
	return c
}

// Last returns the most recent section of type t.
func (c Context) Last(t SectionType) (Section, bool) {
	for i := len(c.Sections) - 1; i >= 0; i-- {
		if c.Sections[i].Type == t {
			return c.Sections[i], true
		}
	}
	return Section{}, false
}
