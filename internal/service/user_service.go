package service

import (
	"errors"

	"ashteams-intelligence/backend/internal/models"
	"ashteams-intelligence/backend/internal/store"
	"ashteams-intelligence/backend/pkg/jwt"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UserService handles registration and login
type UserService struct {
	store      store.Store
	jwtService *jwt.Service
}

// NewUserService creates a new user service
func NewUserService(st store.Store, jwtService *jwt.Service) *UserService {
	return &UserService{store: st, jwtService: jwtService}
}

// Register creates a new account and returns it with an access token
func (s *UserService) Register(req *models.RegisterRequest) (*models.User, string, error) {
	hash, err := models.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.store.CreateUser(req.Email, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, "", ErrUserAlreadyExists
		}
		return nil, "", err
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates a user and returns an access token
func (s *UserService) Login(req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.store.GetUserByEmail(req.Email)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUserByID retrieves a user by id
func (s *UserService) GetUserByID(id uint) (*models.User, error) {
	user, err := s.store.GetUser(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
