package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const employeeCachePrefix = "mes:user_employee:"

// EmployeeService 员工服务，负责登录用户到员工的解析
type EmployeeService struct {
	repo   *repository.EmployeeRepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewEmployeeService(repo *repository.EmployeeRepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{repo: repo, rdb: rdb, ttl: ttl, logger: logger}
}

// CurrentEmployee 返回会话用户关联的员工，未关联时返回 nil
func (s *EmployeeService) CurrentEmployee(ctx context.Context, sess Session) (*entity.Employee, error) {
	if sess.UserID == "" {
		return nil, nil
	}

	cacheKey := employeeCachePrefix + sess.UserID
	if s.rdb != nil {
		if id, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil && id != "" {
			emp, err := s.repo.FindByID(ctx, id)
			if err == nil && emp.Active && emp.UserID == sess.UserID {
				return emp, nil
			}
			// 缓存失效（员工被停用或改绑），回源查询
			s.rdb.Del(ctx, cacheKey)
		} else if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn("employee cache read failed", zap.String("user_id", sess.UserID), zap.Error(err))
		}
	}

	emp, err := s.repo.FindByUserID(ctx, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询当前员工失败: %w", err)
	}

	if s.rdb != nil && s.ttl > 0 {
		if err := s.rdb.Set(ctx, cacheKey, emp.ID, s.ttl).Err(); err != nil {
			s.logger.Warn("employee cache write failed", zap.String("user_id", sess.UserID), zap.Error(err))
		}
	}
	return emp, nil
}

func (s *EmployeeService) List(ctx context.Context) ([]entity.Employee, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询员工列表失败: %w", err)
	}
	if list == nil {
		list = []entity.Employee{}
	}
	return list, nil
}

// CreateEmployeeInput 创建员工输入
type CreateEmployeeInput struct {
	Name   string `json:"name" binding:"required"`
	UserID string `json:"user_id"`
}

func (s *EmployeeService) Create(ctx context.Context, input *CreateEmployeeInput) (*entity.Employee, error) {
	emp := &entity.Employee{
		Name:   input.Name,
		UserID: input.UserID,
		Active: true,
	}
	if err := s.repo.Create(ctx, emp); err != nil {
		return nil, fmt.Errorf("创建员工失败: %w", err)
	}
	if emp.UserID != "" {
		s.invalidate(ctx, emp.UserID)
	}
	return emp, nil
}

// MeView 当前会话
type MeView struct {
	UserID   string           `json:"user_id"`
	Name     string           `json:"name"`
	Employee *entity.Employee `json:"employee"`
}

func (s *EmployeeService) Me(ctx context.Context, sess Session) (*MeView, error) {
	emp, err := s.CurrentEmployee(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &MeView{UserID: sess.UserID, Name: sess.Name, Employee: emp}, nil
}

func (s *EmployeeService) invalidate(ctx context.Context, userID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, employeeCachePrefix+userID).Err(); err != nil {
		s.logger.Warn("employee cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
