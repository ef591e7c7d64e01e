package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ObjectStore 作业指导书存储
type ObjectStore interface {
	Put(ctx context.Context, object string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, object string, expiry time.Duration) (string, error)
}

// MinIOStore 基于 MinIO 的对象存储
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(client *minio.Client, bucket string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket}
}

// EnsureBucket 桶不存在时创建
func (m *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	return nil
}

func (m *MinIOStore) Put(ctx context.Context, object string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, object, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (m *MinIOStore) PresignedURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, object, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ActionDescriptor 返回给前端渲染的界面动作
type ActionDescriptor struct {
	XMLID        string `json:"xml_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	ResModel     string `json:"res_model"`
	ViewMode     string `json:"view_mode"`
	Target       string `json:"target"`
	ResID        string `json:"res_id"`
	WorksheetURL string `json:"worksheet_url,omitempty"`
}

// WorksheetService 作业指导书
type WorksheetService struct {
	repos      *repository.Repositories
	store      ObjectStore
	actionID   string
	presignTTL time.Duration
	logger     *zap.Logger
}

func NewWorksheetService(repos *repository.Repositories, store ObjectStore, actionID string, presignTTL time.Duration, logger *zap.Logger) *WorksheetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorksheetService{repos: repos, store: store, actionID: actionID, presignTTL: presignTTL, logger: logger}
}

// OpenWizard 解析作业指导书动作并绑定到当前工单
func (s *WorksheetService) OpenWizard(ctx context.Context, sess Session, ids []string) (*ActionDescriptor, error) {
	id, err := ensureOne(ids)
	if err != nil {
		return nil, err
	}
	wo, err := s.repos.WorkOrder.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	action, err := s.repos.Action.FindByXMLID(ctx, s.actionID)
	if err != nil {
		return nil, fmt.Errorf("界面动作 %s: %w", s.actionID, err)
	}

	desc := &ActionDescriptor{
		XMLID:    action.XMLID,
		Name:     action.Name,
		Type:     action.Type,
		ResModel: action.ResModel,
		ViewMode: action.ViewMode,
		Target:   action.Target,
		ResID:    wo.ID,
	}
	if s.store != nil && wo.WorksheetObject != "" {
		u, err := s.store.PresignedURL(ctx, wo.WorksheetObject, s.presignTTL)
		if err != nil {
			s.logger.Warn("presign worksheet failed", zap.String("workorder_id", wo.ID), zap.Error(err))
		} else {
			desc.WorksheetURL = u
		}
	}
	return desc, nil
}

// UploadWorksheet 上传工单的作业指导书
func (s *WorksheetService) UploadWorksheet(ctx context.Context, id, filename string, r io.Reader, size int64, contentType string) (*entity.WorkOrder, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured
	}
	wo, err := s.repos.WorkOrder.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	object := fmt.Sprintf("workorders/%s/%d_%s", wo.ID, time.Now().UnixNano(), path.Base(filename))
	if err := s.store.Put(ctx, object, r, size, contentType); err != nil {
		return nil, fmt.Errorf("上传作业指导书失败: %w", err)
	}
	wo.WorksheetObject = object
	if err := s.repos.WorkOrder.Update(ctx, wo); err != nil {
		return nil, fmt.Errorf("更新工单失败: %w", err)
	}
	wo.HasWorksheet = true
	return wo, nil
}

// actionSeedFile 界面动作种子文件
type actionSeedFile struct {
	Actions []struct {
		XMLID    string `yaml:"xml_id"`
		Name     string `yaml:"name"`
		Type     string `yaml:"type"`
		ResModel string `yaml:"res_model"`
		ViewMode string `yaml:"view_mode"`
		Target   string `yaml:"target"`
	} `yaml:"actions"`
}

// LoadActionSeeds 解析 yaml 种子数据
func LoadActionSeeds(data []byte) ([]entity.UIAction, error) {
	var f actionSeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析界面动作失败: %w", err)
	}
	actions := make([]entity.UIAction, 0, len(f.Actions))
	for _, a := range f.Actions {
		if a.XMLID == "" || a.Name == "" || a.Type == "" {
			return nil, fmt.Errorf("界面动作缺少 xml_id/name/type: %+v", a)
		}
		actions = append(actions, entity.UIAction{
			XMLID:    a.XMLID,
			Name:     a.Name,
			Type:     a.Type,
			ResModel: a.ResModel,
			ViewMode: a.ViewMode,
			Target:   a.Target,
		})
	}
	return actions, nil
}

// SeedActions 从文件加载并写入界面动作
func (s *WorksheetService) SeedActions(ctx context.Context, file string) (int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, fmt.Errorf("读取界面动作文件失败: %w", err)
	}
	actions, err := LoadActionSeeds(data)
	if err != nil {
		return 0, err
	}
	for i := range actions {
		if err := s.repos.Action.Upsert(ctx, &actions[i]); err != nil {
			return 0, fmt.Errorf("写入界面动作 %s 失败: %w", actions[i].XMLID, err)
		}
	}
	return len(actions), nil
}
