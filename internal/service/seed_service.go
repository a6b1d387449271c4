package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/influmarket-backend/internal/models"
	"github.com/ignatzorin/influmarket-backend/internal/repository"
)

// SeedService генерирует демо-данные для разработки.
type SeedService struct {
	userRepo    *repository.UserRepository
	orderRepo   *repository.OrderRepository
	messageRepo *repository.MessageRepository
}

// NewSeedService создаёт сервис генерации демо-данных.
func NewSeedService(userRepo *repository.UserRepository, orderRepo *repository.OrderRepository, messageRepo *repository.MessageRepository) *SeedService {
	return &SeedService{
		userRepo:    userRepo,
		orderRepo:   orderRepo,
		messageRepo: messageRepo,
	}
}

// SeedData наполняет базу демо-инфлюенсерами, бизнесами и заказами.
func (s *SeedService) SeedData(ctx context.Context, numInfluencers, numBusinesses, numOrders int) error {
	influencers, err := s.generateInfluencers(ctx, numInfluencers)
	if err != nil {
		return fmt.Errorf("seed service: генерация инфлюенсеров: %w", err)
	}

	businesses, err := s.generateBusinesses(ctx, numBusinesses)
	if err != nil {
		return fmt.Errorf("seed service: генерация бизнесов: %w", err)
	}

	if err := s.generateOrders(ctx, businesses, influencers, numOrders); err != nil {
		return fmt.Errorf("seed service: генерация заказов: %w", err)
	}

	return nil
}

var seedNiches = []string{
	"мода", "красота", "фитнес", "еда", "путешествия",
	"технологии", "игры", "материнство", "финансы", "юмор",
}

var seedFirstNames = []string{
	"Анна", "Мария", "Елена", "Юлия", "Дарья", "Виктория", "Полина", "Алиса",
	"Александр", "Дмитрий", "Максим", "Артём", "Иван", "Никита", "Егор", "Павел",
}

var seedLastNames = []string{
	"Иванова", "Петрова", "Смирнова", "Соколова", "Лебедева", "Новикова",
	"Морозов", "Волков", "Васильев", "Зайцев", "Павлов", "Фёдоров",
}

var seedCompanies = []string{
	"Modas Bella", "FitLife Store", "Café Aurora", "TechZone", "Doce Mel",
	"Verde Natural", "Studio Glow", "Casa & Cor", "PetShop Amigo", "Viagem Top",
}

func (s *SeedService) generateInfluencers(ctx context.Context, count int) ([]*models.ProfileRow, error) {
	rows := make([]*models.ProfileRow, 0, count)

	for i := 0; i < count; i++ {
		fullName := seedFirstNames[rand.Intn(len(seedFirstNames))] + " " + seedLastNames[rand.Intn(len(seedLastNames))]
		email := fmt.Sprintf("influencer%d@demo.influmarket.app", i+1)

		row, err := s.createAccount(ctx, email, fullName, models.RoleInfluencer)
		if err != nil {
			return nil, err
		}

		profile := models.InfluencerProfile{
			Niche:          seedNiches[rand.Intn(len(seedNiches))],
			Bio:            "Создаю контент, который продаёт. Открыта к сотрудничеству с брендами.",
			Followers:      5000 + rand.Intn(495000),
			EngagementRate: 1.5 + rand.Float64()*6,
			InstagramURL:   fmt.Sprintf("https://instagram.com/demo_influencer_%d", i+1),
			Services: []models.ServiceOffer{
				{Type: models.ServiceTypeStory, Price: float64(50 + rand.Intn(450))},
				{Type: models.ServiceTypeFeed, Price: float64(150 + rand.Intn(1350))},
				{Type: models.ServiceTypeReels, Price: float64(300 + rand.Intn(2700))},
			},
		}
		raw, err := json.Marshal(profile)
		if err != nil {
			return nil, fmt.Errorf("seed service: сериализация профиля: %w", err)
		}

		updated, err := s.userRepo.UpdateProfileFields(ctx, row.UserID, map[string]interface{}{
			"influencer_profile":   raw,
			"onboarding_completed": true,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, updated)
	}

	return rows, nil
}

func (s *SeedService) generateBusinesses(ctx context.Context, count int) ([]*models.ProfileRow, error) {
	rows := make([]*models.ProfileRow, 0, count)

	for i := 0; i < count; i++ {
		company := seedCompanies[rand.Intn(len(seedCompanies))]
		email := fmt.Sprintf("business%d@demo.influmarket.app", i+1)

		row, err := s.createAccount(ctx, email, company, models.RoleBusiness)
		if err != nil {
			return nil, err
		}

		profile := models.CompanyProfile{
			CompanyName: company,
			Segment:     seedNiches[rand.Intn(len(seedNiches))],
			Description: "Ищем блогеров для продвижения продукции.",
		}
		raw, err := json.Marshal(profile)
		if err != nil {
			return nil, fmt.Errorf("seed service: сериализация профиля: %w", err)
		}

		updated, err := s.userRepo.UpdateProfileFields(ctx, row.UserID, map[string]interface{}{
			"company_profile":      raw,
			"onboarding_completed": true,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, updated)
	}

	return rows, nil
}

func (s *SeedService) generateOrders(ctx context.Context, businesses, influencers []*models.ProfileRow, count int) error {
	if len(businesses) == 0 || len(influencers) == 0 {
		return nil
	}

	serviceTypes := []string{models.ServiceTypeStory, models.ServiceTypeFeed, models.ServiceTypeReels}
	briefings := []string{
		"Нужна честная распаковка нашего продукта с акцентом на качество материалов.",
		"Расскажите подписчикам о нашей новой коллекции, промокод дадим.",
		"Хотим нативную интеграцию в ваш обычный формат, без прямой рекламы.",
		"Обзор нашего сервиса с демонстрацией основных сценариев использования.",
	}

	for i := 0; i < count; i++ {
		business := businesses[rand.Intn(len(businesses))]
		influencer := influencers[rand.Intn(len(influencers))]

		order := &models.Order{
			BusinessID:   business.UserID,
			InfluencerID: influencer.UserID,
			ServiceType:  serviceTypes[rand.Intn(len(serviceTypes))],
			Amount:       float64(100 + rand.Intn(2900)),
			Briefing:     briefings[rand.Intn(len(briefings))],
			Status:       models.OrderStatusPending,
		}
		if err := s.orderRepo.Create(ctx, order); err != nil {
			return err
		}

		msg := &models.Message{
			OrderID:    order.ID,
			AuthorType: models.AuthorTypeSystem,
			Content:    fmt.Sprintf("Заказ создан. Сумма: R$ %.2f. Ожидает подтверждения инфлюенсером.", order.Amount),
		}
		if err := s.messageRepo.Add(ctx, msg); err != nil {
			return err
		}
	}

	return nil
}

// createAccount создаёт учётную запись с паролем demo1234 и профилем.
func (s *SeedService) createAccount(ctx context.Context, email, fullName, role string) (*models.ProfileRow, error) {
	passHash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed service: хеширование пароля: %w", err)
	}

	user := &models.User{Email: email, PasswordHash: string(passHash)}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	row := &models.ProfileRow{
		UserID:   user.ID,
		FullName: fullName,
		Email:    email,
		Role:     role,
		Status:   models.ActorStatusActive,
	}
	if err := s.userRepo.CreateProfile(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}
