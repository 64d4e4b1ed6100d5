package models

// StoryCategory groups stories on the public site.
type StoryCategory string

const (
	CategoryStudents  StoryCategory = "students"
	CategoryTeachers  StoryCategory = "teachers"
	CategoryCommunity StoryCategory = "community"
	CategoryDonors    StoryCategory = "donors"
)

// Valid reports whether c is a known category.
func (c StoryCategory) Valid() bool {
	switch c {
	case CategoryStudents, CategoryTeachers, CategoryCommunity, CategoryDonors:
		return true
	}
	return false
}

// Story is a piece of site content; only published stories are public.
type Story struct {
	ID        int64         `json:"id" db:"id"`
	Title     string        `json:"title" db:"title" validate:"required"`
	Excerpt   string        `json:"excerpt" db:"excerpt"`
	Content   string        `json:"content" db:"content"`
	Author    string        `json:"author" db:"author"`
	Date      string        `json:"date" db:"date"`
	Location  string        `json:"location" db:"location"`
	Category  StoryCategory `json:"category" db:"category"`
	Image     string        `json:"image" db:"image"`
	Featured  bool          `json:"featured" db:"featured"`
	Published bool          `json:"published" db:"published"`
	Tags      []string      `json:"tags" db:"tags"`
}

// StoryPatch is a partial story update; nil fields are left untouched.
type StoryPatch struct {
	Title     *string        `json:"title"`
	Excerpt   *string        `json:"excerpt"`
	Content   *string        `json:"content"`
	Author    *string        `json:"author"`
	Date      *string        `json:"date"`
	Location  *string        `json:"location"`
	Category  *StoryCategory `json:"category"`
	Image     *string        `json:"image"`
	Featured  *bool          `json:"featured"`
	Published *bool          `json:"published"`
	Tags      *[]string      `json:"tags"`
}

// Apply merges the present fields of p into s.
func (p StoryPatch) Apply(s *Story) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Excerpt != nil {
		s.Excerpt = *p.Excerpt
	}
	if p.Content != nil {
		s.Content = *p.Content
	}
	if p.Author != nil {
		s.Author = *p.Author
	}
	if p.Date != nil {
		s.Date = *p.Date
	}
	if p.Location != nil {
		s.Location = *p.Location
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Image != nil {
		s.Image = *p.Image
	}
	if p.Featured != nil {
		s.Featured = *p.Featured
	}
	if p.Published != nil {
		s.Published = *p.Published
	}
	if p.Tags != nil {
		s.Tags = copyTags(*p.Tags)
	}
}

// Clone returns a deep copy of s.
func (s Story) Clone() Story {
	c := s
	if s.Tags != nil {
		c.Tags = copyTags(s.Tags)
	}
	return c
}

// copyTags keeps an empty list empty rather than nil.
func copyTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
