package service

import (
	"errors"
	"testing"
	"time"

	"exam_hub_backend/internal/config"
	"exam_hub_backend/internal/model"
	"exam_hub_backend/internal/repository"
	"exam_hub_backend/internal/util"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	env := newTestEnv(t)
	cfg := &config.Config{}
	cfg.JWT.Secret = "secret-for-tests"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(repository.NewUserRepository(env.db), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newAuthService(t)

	user := &model.User{Name: "小明", Email: "ming@example.com", Password: "pass123456", Role: model.Student}
	if err := auth.Register(user); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Password == "pass123456" {
		t.Fatal("password must be hashed")
	}

	// 邮箱唯一
	dup := &model.User{Name: "李鬼", Email: "ming@example.com", Password: "other"}
	if err := auth.Register(dup); !errors.Is(err, util.ErrEmailRegistered) {
		t.Fatalf("err = %v, want ErrEmailRegistered", err)
	}

	token, err := auth.Login("ming@example.com", "pass123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := util.ParseJWT(token, "secret-for-tests")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != model.Student {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := auth.Login("ming@example.com", "wrong"); !errors.Is(err, util.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := auth.Login("nobody@example.com", "pass123456"); !errors.Is(err, util.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterCoercesRole(t *testing.T) {
	auth := newAuthService(t)

	admin := &model.User{Name: "越权", Email: "admin@example.com", Password: "pass123456", Role: model.Admin}
	if err := auth.Register(admin); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if admin.Role != model.Student {
		t.Fatalf("role = %s, want coerced to student", admin.Role)
	}

	teacher := &model.User{Name: "老师", Email: "teach@example.com", Password: "pass123456", Role: model.Teacher}
	if err := auth.Register(teacher); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if teacher.Role != model.Teacher {
		t.Fatalf("role = %s, want teacher", teacher.Role)
	}
}
