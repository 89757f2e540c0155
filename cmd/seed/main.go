package main

import (
	"context"
	"log"
	"os"

	"github.com/Baaaki/car-rental/internal/config"
	"github.com/Baaaki/car-rental/internal/database"
	"github.com/Baaaki/car-rental/internal/models"
	"github.com/Baaaki/car-rental/internal/repository"
	"github.com/Baaaki/car-rental/internal/utils"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	store := repository.NewStore(db)

	seedAdmin(ctx, store)
	promoteSuperAdmin(ctx, store, cfg.SuperAdminID)
	seedCars(ctx, store)
}

func seedAdmin(ctx context.Context, store *repository.Store) {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminEmail == "" || adminPassword == "" {
		log.Println("ADMIN_USERNAME, ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin user")
		return
	}

	existing, err := store.Users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatal("Failed to look up admin:", err)
	}
	if existing != nil {
		log.Println("Admin user already exists:", existing.Username)
		return
	}

	passwordHash, err := utils.DefaultArgon2().Hash(adminPassword)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	admin := &models.User{
		Username:     adminUsername,
		Email:        adminEmail,
		FullName:     "Administrator",
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		IsVerified:   true,
	}
	if err := store.Users.Create(ctx, admin); err != nil {
		log.Fatal("Failed to create admin:", err)
	}

	log.Println("Admin user created:", admin.Username, "id", admin.ID)
}

// promoteSuperAdmin makes the protected account an admin when it exists.
func promoteSuperAdmin(ctx context.Context, store *repository.Store, id uint) {
	user, err := store.Users.GetByID(ctx, id)
	if err != nil {
		log.Fatal("Failed to look up super admin:", err)
	}
	if user == nil {
		log.Printf("No user with id %d yet, super admin not promoted", id)
		return
	}

	err = store.Users.Update(ctx, user, map[string]interface{}{
		"role":        models.RoleAdmin,
		"is_verified": true,
	})
	if err != nil {
		log.Fatal("Failed to promote super admin:", err)
	}
	log.Println("Super admin:", user.Username)
}

func seedCars(ctx context.Context, store *repository.Store) {
	image := func(s string) *string { return &s }

	cars := []models.Car{
		{
			Make: "Toyota", Model: "Camry", Year: 2023, LicensePlate: "ABC-123", Category: "Sedan",
			Transmission: models.TransmissionAutomatic, FuelType: models.FuelGasoline, SeatCapacity: 5,
			DailyRate: decimal.RequireFromString("50.00"),
			ImageURL:  image("https://images.unsplash.com/photo-1621007947382-bb3c3968e3bb?auto=format&fit=crop&w=500&q=60"),
		},
		{
			Make: "Honda", Model: "CR-V", Year: 2024, LicensePlate: "XYZ-789", Category: "SUV",
			Transmission: models.TransmissionAutomatic, FuelType: models.FuelGasoline, SeatCapacity: 5,
			DailyRate: decimal.RequireFromString("75.00"),
			ImageURL:  image("https://images.unsplash.com/photo-1568844293986-8d0400bd4745?auto=format&fit=crop&w=500&q=60"),
		},
		{
			Make: "Tesla", Model: "Model 3", Year: 2023, LicensePlate: "ELN-456", Category: "Sedan",
			Transmission: models.TransmissionAutomatic, FuelType: models.FuelElectric, SeatCapacity: 5,
			DailyRate: decimal.RequireFromString("120.00"),
			ImageURL:  image("https://images.unsplash.com/photo-1536700503339-1e4b06520771?auto=format&fit=crop&w=500&q=60"),
		},
		{
			Make: "Ford", Model: "Mustang", Year: 2022, LicensePlate: "MUS-999", Category: "Sports",
			Transmission: models.TransmissionAutomatic, FuelType: models.FuelGasoline, SeatCapacity: 4,
			DailyRate: decimal.RequireFromString("150.00"),
			ImageURL:  image("https://images.unsplash.com/photo-1584345604476-8ec5e12e42dd?auto=format&fit=crop&w=500&q=60"),
		},
	}

	created := 0
	for i := range cars {
		car := &cars[i]
		existing, err := store.Cars.GetByPlate(ctx, car.LicensePlate)
		if err != nil {
			log.Fatal("Failed to look up car:", err)
		}
		if existing != nil {
			continue
		}
		car.Status = models.CarAvailable
		if err := store.Cars.Create(ctx, car); err != nil {
			log.Fatal("Failed to create car:", err)
		}
		created++
	}
	log.Printf("Cars seeded: %d new, %d total", created, len(cars))
}
