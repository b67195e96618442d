package school

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	if err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetParentByUserID(ctx context.Context, userID string) (*Parent, error) {
	var p Parent
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetStudent(ctx context.Context, id string) (*Student, error) {
	var s Student
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetTeacherByUserID(ctx context.Context, userID string) (*Teacher, error) {
	var t Teacher
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) GetClass(ctx context.Context, id string) (*Class, error) {
	var c Class
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListTeachersByClass returns teachers with their profile name and email.
func (r *Repo) ListTeachersByClass(ctx context.Context, classID string) ([]Teacher, error) {
	teachers := []Teacher{}
	if err := r.db.WithContext(ctx).
		Preload("Profile", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("user_id", "full_name", "email")
		}).
		Where("class_id = ?", classID).
		Order("id ASC").
		Find(&teachers).Error; err != nil {
		return nil, err
	}
	return teachers, nil
}

func (r *Repo) ListStudentsByClass(ctx context.Context, classID string) ([]Student, error) {
	students := []Student{}
	if err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("name ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

// FindClassesByGrade returns every class with grade; schoolID narrows the
// search when non-empty.
func (r *Repo) FindClassesByGrade(ctx context.Context, grade, schoolID string) ([]Class, error) {
	q := r.db.WithContext(ctx).Where("grade = ?", grade)
	if schoolID != "" {
		q = q.Where("school_id = ?", schoolID)
	}
	var classes []Class
	if err := q.Limit(2).Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *Repo) ListStudentNames(ctx context.Context, classID string) ([]string, error) {
	names := []string{}
	if err := r.db.WithContext(ctx).Model(&Student{}).
		Where("class_id = ?", classID).
		Order("name ASC").
		Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

func (r *Repo) ListTeacherSubjects(ctx context.Context, classID string) ([]string, error) {
	subjects := []string{}
	if err := r.db.WithContext(ctx).Model(&Teacher{}).
		Where("class_id = ?", classID).
		Order("id ASC").
		Pluck("subject", &subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}
