package curriculum

// Exam is one seed file: an exam with its subjects, topic vocabularies,
// sub-categories and tracks.
type Exam struct {
	Name          string        `yaml:"exam"`
	DisplayName   string        `yaml:"display_name"`
	Inactive      bool          `yaml:"inactive"`
	Subjects      []Subject     `yaml:"subjects"`
	SubCategories []SubCategory `yaml:"sub_categories"`
}

// Subject lists the approved topics of one subject.
type Subject struct {
	Name        string  `yaml:"name"`
	DisplayName string  `yaml:"display_name"`
	Inactive    bool    `yaml:"inactive"`
	Topics      []Topic `yaml:"topics"`
}

// Topic is one approved topic.
type Topic struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
}

// SubCategory groups tracks (e.g. past questions, study plan).
type SubCategory struct {
	Name        string  `yaml:"name"`
	DisplayName string  `yaml:"display_name"`
	Inactive    bool    `yaml:"inactive"`
	Tracks      []Track `yaml:"tracks"`
}

// Track is a content lane with its period type.
type Track struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	TrackType   string `yaml:"track_type"`
	Duration    int    `yaml:"duration"`
	Inactive    bool   `yaml:"inactive"`
}
