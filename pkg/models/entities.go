package models

import (
	"encoding/json"
)

// Kind names an entity type. Mutation events carry it.
type Kind string

const (
	KindFaculty  Kind = "faculty"
	KindCathedra Kind = "cathedra"
	KindGroup    Kind = "group"
	KindLesson   Kind = "lesson"
	KindPayment  Kind = "payment"
)

// Faculty is a top-level university unit.
type Faculty struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	FoundedDate    Time    `json:"foundedDate"`
	SiteURL        string  `json:"siteUrl,omitempty"`
	AdditionalInfo string  `json:"addittionalInfo,omitempty"` // sic, backend spelling
	CreatedAt      Time    `json:"createdAt"`
	UpdatedAt      Time    `json:"updatedAt"`
	CathedrasCount FlexInt `json:"cathedras"`
}

// EntityID implements pagination.Identifiable.
func (f Faculty) EntityID() int { return f.ID }

// Cathedra is a department of a faculty.
type Cathedra struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	FoundedDate    Time    `json:"foundedDate"`
	SiteURL        string  `json:"siteUrl,omitempty"`
	AdditionalInfo string  `json:"addittionalInfo,omitempty"`
	CreatedAt      Time    `json:"createdAt"`
	UpdatedAt      Time    `json:"updatedAt"`
	FacultyID      int     `json:"facultyId"`
	GroupsCount    FlexInt `json:"groups"`
}

// EntityID implements pagination.Identifiable.
func (c Cathedra) EntityID() int { return c.ID }

// Group is a student group of a cathedra.
type Group struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	NumberOfSemesters int     `json:"numberOfSemesters"`
	CathedraID        int     `json:"cathedraId"`
	CreatedAt         Time    `json:"createdAt"`
	UpdatedAt         Time    `json:"updatedAt"`
	StudentsCount     FlexInt `json:"students"`
}

// EntityID implements pagination.Identifiable.
func (g Group) EntityID() int { return g.ID }

// LessonTeacher is the teacher summary embedded in a lesson.
type LessonTeacher struct {
	ID         int64
	FirstName  string
	LastName   string
	MiddleName string
	Email      string
}

type lessonTeacherWire struct {
	ID   int64 `json:"id"`
	User struct {
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
		MiddleName string `json:"middleName"`
		Email      string `json:"email"`
	} `json:"user"`
}

// UnmarshalJSON flattens the nested user object.
func (t *LessonTeacher) UnmarshalJSON(data []byte) error {
	var w lessonTeacherWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = LessonTeacher{
		ID:         w.ID,
		FirstName:  w.User.FirstName,
		LastName:   w.User.LastName,
		MiddleName: w.User.MiddleName,
		Email:      w.User.Email,
	}
	return nil
}

// MarshalJSON restores the nested user object.
func (t LessonTeacher) MarshalJSON() ([]byte, error) {
	var w lessonTeacherWire
	w.ID = t.ID
	w.User.FirstName = t.FirstName
	w.User.LastName = t.LastName
	w.User.MiddleName = t.MiddleName
	w.User.Email = t.Email
	return json.Marshal(w)
}

// FullName returns "Last First Middle".
func (t LessonTeacher) FullName() string {
	return joinName(t.LastName, t.FirstName, t.MiddleName)
}

// Lesson is a course taught by one teacher to several groups.
type Lesson struct {
	ID      int
	Name    string
	Teacher LessonTeacher
	Groups  []Group
}

// EntityID implements pagination.Identifiable.
func (l Lesson) EntityID() int { return l.ID }

type lessonWire struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Teacher     LessonTeacher `json:"teacher"`
	GroupLesson []struct {
		Group *Group `json:"group"`
	} `json:"groupLesson"`
}

// UnmarshalJSON flattens the groupLesson join rows into Groups.
func (l *Lesson) UnmarshalJSON(data []byte) error {
	var w lessonWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*l = Lesson{ID: w.ID, Name: w.Name, Teacher: w.Teacher}
	for _, gl := range w.GroupLesson {
		if gl.Group != nil {
			l.Groups = append(l.Groups, *gl.Group)
		}
	}
	return nil
}

// MarshalJSON restores the groupLesson join rows.
func (l Lesson) MarshalJSON() ([]byte, error) {
	w := lessonWire{ID: l.ID, Name: l.Name, Teacher: l.Teacher}
	for i := range l.Groups {
		g := l.Groups[i]
		w.GroupLesson = append(w.GroupLesson, struct {
			Group *Group `json:"group"`
		}{Group: &g})
	}
	return json.Marshal(w)
}

// PaymentAction tells a balance recharge from a tuition payment.
type PaymentAction string

const (
	ActionRecharge PaymentAction = "recharge"
	ActionTuition  PaymentAction = "tuition"
)

// Payment is one row of a student's balance history.
type Payment struct {
	ID        int       `json:"id"`
	Change    FlexFloat `json:"change"`
	Balance   FlexFloat `json:"balance"`
	Date      Time      `json:"createdAt"`
	StudentID int64     `json:"studentId"`
}

// EntityID implements pagination.Identifiable.
func (p Payment) EntityID() int { return p.ID }

// ActionType is recharge for positive changes and tuition otherwise.
func (p Payment) ActionType() PaymentAction {
	if p.Change > 0 {
		return ActionRecharge
	}
	return ActionTuition
}

// Entity is implemented by every list entity.
type Entity interface {
	EntityID() int
}
