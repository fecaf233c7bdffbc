package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidUser is returned when user JSON lacks a required field or names
// an unknown role.
var ErrInvalidUser = errors.New("invalid user")

// Role is the backend role name.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Profile holds the fields every user has.
type Profile struct {
	ID         int64
	FirstName  string
	LastName   string
	MiddleName string
	LoginName  string
	Email      string
	Birthday   Time
	// PhotoPath is relative to the backend base URL.
	PhotoPath string
}

// FullName returns "Last First Middle".
func (p Profile) FullName() string {
	return joinName(p.LastName, p.FirstName, p.MiddleName)
}

// LastNameWithInitials returns "Last F.M.".
func (p Profile) LastNameWithInitials() string {
	return p.LastName + " " + initial(p.FirstName) + initial(p.MiddleName)
}

// PhotoURL resolves PhotoPath against baseURL. Empty without a photo.
func (p Profile) PhotoURL(baseURL string) string {
	if p.PhotoPath == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(p.PhotoPath, "/")
}

// User is the signed-in user: *Admin, *Student or *Teacher.
type User interface {
	Role() Role
	UserProfile() Profile
	isUser()
}

// Admin manages faculties, cathedras, groups and lessons.
type Admin struct {
	Profile
}

// Student pays tuition from a prepaid balance.
type Student struct {
	Profile
	Balance     float64
	GroupID     int64
	LearnFormID int64
	Blocked     bool
	NeedPaySum  float64
}

// Teacher belongs to a cathedra.
type Teacher struct {
	Profile
	CathedraID     int64
	AdditionalInfo string
}

func (*Admin) Role() Role   { return RoleAdmin }
func (*Student) Role() Role { return RoleStudent }
func (*Teacher) Role() Role { return RoleTeacher }

func (a *Admin) UserProfile() Profile   { return a.Profile }
func (s *Student) UserProfile() Profile { return s.Profile }
func (t *Teacher) UserProfile() Profile { return t.Profile }

func (*Admin) isUser()   {}
func (*Student) isUser() {}
func (*Teacher) isUser() {}

type photoWire struct {
	Path string `json:"path"`
}

type studentWire struct {
	Balance     FlexFloat `json:"balance"`
	GroupID     *int64    `json:"groupId" validate:"required"`
	LearnFormID *int64    `json:"learnFormId" validate:"required"`
	Blocked     bool      `json:"blocked"`
	NeedPaySum  FlexFloat `json:"needPaySum"`
}

type teacherWire struct {
	CathedraID     *int64 `json:"cathedraId" validate:"required"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

type userWire struct {
	RoleName   Role         `json:"roleName" validate:"required,oneof=admin student teacher"`
	ID         *int64       `json:"id" validate:"required"`
	FirstName  string       `json:"firstName" validate:"required"`
	LastName   string       `json:"lastName" validate:"required"`
	MiddleName string       `json:"middleName" validate:"required"`
	LoginName  string       `json:"loginName" validate:"required"`
	Email      string       `json:"email" validate:"required"`
	Birthday   Time         `json:"birthday"`
	Photo      *photoWire   `json:"photo,omitempty"`
	Student    *studentWire `json:"student,omitempty" validate:"required_if=RoleName student"`
	Teacher    *teacherWire `json:"teacher,omitempty" validate:"required_if=RoleName teacher"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseUser decodes the /user/data payload into the matching variant.
func ParseUser(data []byte) (User, error) {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if err := validate.Struct(w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if w.Birthday.IsZero() {
		return nil, fmt.Errorf("%w: missing birthday", ErrInvalidUser)
	}

	profile := Profile{
		ID:         *w.ID,
		FirstName:  w.FirstName,
		LastName:   w.LastName,
		MiddleName: w.MiddleName,
		LoginName:  w.LoginName,
		Email:      w.Email,
		Birthday:   w.Birthday,
	}
	if w.Photo != nil {
		profile.PhotoPath = w.Photo.Path
	}

	switch w.RoleName {
	case RoleStudent:
		return &Student{
			Profile:     profile,
			Balance:     float64(w.Student.Balance),
			GroupID:     *w.Student.GroupID,
			LearnFormID: *w.Student.LearnFormID,
			Blocked:     w.Student.Blocked,
			NeedPaySum:  float64(w.Student.NeedPaySum),
		}, nil
	case RoleTeacher:
		return &Teacher{
			Profile:        profile,
			CathedraID:     *w.Teacher.CathedraID,
			AdditionalInfo: w.Teacher.AdditionalInfo,
		}, nil
	default:
		return &Admin{Profile: profile}, nil
	}
}

// EncodeUser encodes u in the /user/data wire format, so that ParseUser reads
// it back.
func EncodeUser(u User) ([]byte, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: nil user", ErrInvalidUser)
	}
	p := u.UserProfile()
	id := p.ID
	w := userWire{
		RoleName:   u.Role(),
		ID:         &id,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		MiddleName: p.MiddleName,
		LoginName:  p.LoginName,
		Email:      p.Email,
		Birthday:   p.Birthday,
	}
	if p.PhotoPath != "" {
		w.Photo = &photoWire{Path: p.PhotoPath}
	}

	switch v := u.(type) {
	case *Student:
		groupID, learnFormID := v.GroupID, v.LearnFormID
		w.Student = &studentWire{
			Balance:     FlexFloat(v.Balance),
			GroupID:     &groupID,
			LearnFormID: &learnFormID,
			Blocked:     v.Blocked,
			NeedPaySum:  FlexFloat(v.NeedPaySum),
		}
	case *Teacher:
		cathedraID := v.CathedraID
		w.Teacher = &teacherWire{CathedraID: &cathedraID, AdditionalInfo: v.AdditionalInfo}
	}
	return json.Marshal(w)
}

func joinName(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func initial(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return ""
	}
	return string(r) + "."
}
