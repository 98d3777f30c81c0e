package usecase

import (
	"fmt"
	"triage_service/internal/domain"

	"github.com/samber/lo"
)

const granuleUsage = "将每袋药物加入开水约 50 毫升，搅拌至颗粒基本溶解，再加适量温水稀释，每日 2 次温服"

var treatments = []domain.Treatment{
	{
		Code:      "blood_heat",
		Syndrome:  "血热证",
		Principle: "凉血潜阳",
		Prescription: domain.Prescription{
			Name: "决银颗粒",
			Medicines: []domain.Medicine{
				{Name: "石决明", Amount: "30g"},
				{Name: "金银花", Amount: "15g"},
				{Name: "丹皮", Amount: "15g"},
				{Name: "生地", Amount: "30g"},
				{Name: "白花蛇舌草", Amount: "30g"},
				{Name: "大青叶", Amount: "30g"},
				{Name: "郁金", Amount: "9g"},
			},
		},
		Usage: granuleUsage,
	},
	{
		Code:      "blood_stasis",
		Syndrome:  "血瘀证",
		Principle: "活血化瘀",
		Prescription: domain.Prescription{
			Name: "桃丹颗粒",
			Medicines: []domain.Medicine{
				{Name: "黄芪", Amount: "15g"},
				{Name: "炙甘草", Amount: "10g"},
				{Name: "当归", Amount: "15g"},
				{Name: "川芎", Amount: "10g"},
				{Name: "桃仁", Amount: "10g"},
				{Name: "丹参", Amount: "30g"},
				{Name: "莪术", Amount: "30g"},
				{Name: "川牛膝", Amount: "15g"},
				{Name: "菝葜", Amount: "30g"},
			},
		},
		Usage:       granuleUsage,
		Recommended: true,
	},
	{
		Code:      "blood_dryness",
		Syndrome:  "血燥证",
		Principle: "养血润燥",
		Prescription: domain.Prescription{
			Name: "养血解毒颗粒",
			Medicines: []domain.Medicine{
				{Name: "丹参", Amount: "15g"},
				{Name: "当归", Amount: "15g"},
				{Name: "生地黄", Amount: "15g"},
				{Name: "麦冬", Amount: "10g"},
				{Name: "玄参", Amount: "15g"},
				{Name: "鸡血藤", Amount: "15g"},
				{Name: "土茯苓", Amount: "30g"},
				{Name: "重楼", Amount: "9g"},
				{Name: "板蓝根", Amount: "15g"},
				{Name: "车前子", Amount: "15g"},
			},
		},
		Usage: granuleUsage,
	},
}

// TreatmentCatalog is the fixed reference list of granule formulas.
type TreatmentCatalog struct{}

func NewTreatmentCatalog() *TreatmentCatalog {
	return &TreatmentCatalog{}
}

func (c *TreatmentCatalog) List() []domain.Treatment {
	return lo.Map(treatments, func(t domain.Treatment, _ int) domain.Treatment { return cloneTreatment(t) })
}

// Get accepts either the code (blood_stasis) or the syndrome name (血瘀证).
func (c *TreatmentCatalog) Get(syndrome string) (*domain.Treatment, error) {
	t, ok := lo.Find(treatments, func(t domain.Treatment) bool {
		return t.Code == syndrome || t.Syndrome == syndrome
	})
	if !ok {
		return nil, fmt.Errorf("treatment for %q: %w", syndrome, domain.ErrNotFound)
	}
	out := cloneTreatment(t)
	return &out, nil
}

func (c *TreatmentCatalog) Recommended() domain.Treatment {
	t, _ := lo.Find(treatments, func(t domain.Treatment) bool { return t.Recommended })
	return cloneTreatment(t)
}

func cloneTreatment(t domain.Treatment) domain.Treatment {
	t.Prescription.Medicines = append([]domain.Medicine(nil), t.Prescription.Medicines...)
	return t
}
