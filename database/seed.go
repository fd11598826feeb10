package database

import (
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/classboard/classboard-api/model"
	"github.com/classboard/classboard-api/utils/auth"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedDemoTeacher(); err != nil {
		return fmt.Errorf("failed to seed demo teacher: %w", err)
	}

	if err := s.SeedFolders(); err != nil {
		return fmt.Errorf("failed to seed folders: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// RunSeeds is the entry point used by the seed command
func RunSeeds(db *gorm.DB) error {
	return NewSeeder(db).SeedAll()
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	// Check if admin already exists
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	// Get admin credentials from environment variables
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        adminEmail,
		Username:     "admin",
		PasswordHash: passwordHash,
		Name:         "Administrator",
		Role:         model.RoleAdmin,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s", adminEmail)
	return nil
}

// SeedDemoTeacher creates a demo teacher account for local development
func (s *Seeder) SeedDemoTeacher() error {
	if os.Getenv("GO_ENV") == "production" {
		return nil
	}

	var count int64
	if err := s.db.Model(&model.User{}).Where("username = ?", "demo.teacher").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️  Demo teacher already exists, skipping...")
		return nil
	}

	passwordHash, err := auth.HashPassword("demo-teacher-password")
	if err != nil {
		return err
	}

	teacher := model.User{
		Email:        "demo.teacher@classboard.local",
		Username:     "demo.teacher",
		PasswordHash: passwordHash,
		Name:         "Demo Teacher",
		Role:         model.RoleTeacher,
	}
	if err := s.db.Create(&teacher).Error; err != nil {
		return err
	}

	log.Println("✅ Created demo teacher: demo.teacher")
	return nil
}

// SeedFolders creates the starter folder scopes for local development
func (s *Seeder) SeedFolders() error {
	if os.Getenv("GO_ENV") == "production" {
		return nil
	}

	var count int64
	if err := s.db.Model(&model.Folder{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️  Folders already exist, skipping...")
		return nil
	}

	folders := []model.Folder{
		{Name: "Mathematics - Unit 1", CourseClassName: "Class 10", SectionName: "A", SubjectName: "Mathematics"},
		{Name: "Science - Unit 1", CourseClassName: "Class 10", SectionName: "A", SubjectName: "Science"},
		{Name: "English - Unit 1", CourseClassName: "Class 10", SectionName: "B", SubjectName: "English"},
	}
	for _, folder := range folders {
		if err := s.db.Create(&folder).Error; err != nil {
			return err
		}
	}

	log.Printf("✅ Created %d starter folders", len(folders))
	return nil
}
