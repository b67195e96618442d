package school

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type ParentContext struct {
	Child    *Student  `json:"child"`
	Teachers []Teacher `json:"teachers"`
}

type TeacherContext struct {
	Class    *Class    `json:"class"`
	Students []Student `json:"students"`
}

// Resolver builds the role-scoped records a chat turn is grounded on.
type Resolver struct {
	repo *Repo
}

func NewResolver(repo *Repo) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the caller's profile and the context object to embed. A nil
// profile with a nil error means the caller is unknown to the school backend.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Profile, any, error) {
	profile, err := r.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var data any
	switch profile.Role {
	case RoleParent:
		data, err = r.parentContext(ctx, userID)
	case RoleTeacher:
		data, err = r.teacherContext(ctx, userID)
	}
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		data = struct{}{}
	}
	return profile, data, nil
}

func (r *Resolver) parentContext(ctx context.Context, userID string) (any, error) {
	parent, err := r.repo.GetParentByUserID(ctx, userID)
	if err != nil {
		return ignoreNotFound(err)
	}
	if parent.ChildID == "" {
		return nil, nil
	}
	child, err := r.repo.GetStudent(ctx, parent.ChildID)
	if err != nil {
		return ignoreNotFound(err)
	}
	teachers, err := r.repo.ListTeachersByClass(ctx, child.ClassID)
	if err != nil {
		return nil, err
	}
	return ParentContext{Child: child, Teachers: teachers}, nil
}

func (r *Resolver) teacherContext(ctx context.Context, userID string) (any, error) {
	teacher, err := r.repo.GetTeacherByUserID(ctx, userID)
	if err != nil {
		return ignoreNotFound(err)
	}
	if teacher.ClassID == "" {
		return nil, nil
	}
	class, err := r.repo.GetClass(ctx, teacher.ClassID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	students, err := r.repo.ListStudentsByClass(ctx, teacher.ClassID)
	if err != nil {
		return nil, err
	}
	return TeacherContext{Class: class, Students: students}, nil
}

// ignoreNotFound maps a missing link row to an empty context.
func ignoreNotFound(err error) (any, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}
