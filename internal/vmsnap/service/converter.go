package service

import (
	"encoding/json"
	"fmt"

	"github.com/jinzhu/copier"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
	"github.com/jimyag/vmsnap/internal/vmsnap/repository/model"
)

// roundSummaryToModel 将 entity.RoundSummary 转换为 model.Round
func roundSummaryToModel(e *entity.RoundSummary) (*model.Round, error) {
	m := &model.Round{}
	if err := copier.Copy(m, e); err != nil {
		return nil, err
	}

	m.ID = e.RoundID // 字段名不同，手动映射
	m.Trigger = string(e.Trigger)

	// 失败描述以 JSON 数组文本落库
	if len(e.Errors) > 0 {
		raw, err := json.Marshal(e.Errors)
		if err != nil {
			return nil, fmt.Errorf("marshal round errors: %w", err)
		}
		m.Errors = string(raw)
	}

	return m, nil
}

// roundModelToSummary 将 model.Round 转换为 entity.RoundSummary
func roundModelToSummary(m *model.Round) (*entity.RoundSummary, error) {
	e := &entity.RoundSummary{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}

	e.RoundID = m.ID // 字段名不同，手动映射
	e.Trigger = entity.RoundTrigger(m.Trigger)

	if m.Errors != "" {
		if err := json.Unmarshal([]byte(m.Errors), &e.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal round errors: %w", err)
		}
	}

	return e, nil
}
