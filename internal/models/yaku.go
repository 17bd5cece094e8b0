// internal/models/yaku.go
package models

import "sort"

// Yaku ids are persisted with every win, so new entries go at the end.
const (
	// Special criteria
	YakuRiichi int = iota + 1
	YakuDoubleRiichi
	YakuIppatsu
	YakuMenzenTsumo
	YakuChiitoitsu

	// Yaku based on luck
	YakuHaitei
	YakuHoutei
	YakuRinshan
	YakuChankan

	// Yaku based on sequences
	YakuPinfu
	YakuIipeikou
	YakuRyanpeikou
	YakuSanshokuDoujun
	YakuIttsuu

	// Yaku based on triplets and/or quads
	YakuToitoi
	YakuSanankou
	YakuSanshokuDoukou
	YakuSankantsu

	// Yaku based on terminal or honor tiles
	YakuTanyao
	YakuYakuhaiHaku
	YakuYakuhaiHatsu
	YakuYakuhaiChun
	YakuYakuhaiSeat
	YakuYakuhaiRound
	YakuChanta
	YakuJunchan
	YakuHonroutou
	YakuShousangen

	// Yaku based on suits
	YakuHonitsu
	YakuChinitsu

	// Yakuman
	YakuKokushi
	YakuSuuankou
	YakuDaisangen
	YakuShousuushii
	YakuDaisuushii
	YakuTsuuiisou
	YakuChinroutou
	YakuRyuuiisou
	YakuChuuren
	YakuSuukantsu
	YakuTenhou
	YakuChiihou

	// Optional
	YakuOpenRiichi
	YakuNagashiMangan
	YakuRenhou
)

// YakuNames maps the text-log spelling of a yaku to its id.
var YakuNames = map[string]int{
	"riichi":          YakuRiichi,
	"double_riichi":   YakuDoubleRiichi,
	"ippatsu":         YakuIppatsu,
	"menzentsumo":     YakuMenzenTsumo,
	"chiitoitsu":      YakuChiitoitsu,
	"haitei":          YakuHaitei,
	"houtei":          YakuHoutei,
	"rinshan":         YakuRinshan,
	"chankan":         YakuChankan,
	"pinfu":           YakuPinfu,
	"iipeikou":        YakuIipeikou,
	"ryanpeikou":      YakuRyanpeikou,
	"sanshoku":        YakuSanshokuDoujun,
	"ittsu":           YakuIttsuu,
	"toitoi":          YakuToitoi,
	"sanankou":        YakuSanankou,
	"sanshoku_doukou": YakuSanshokuDoukou,
	"sankantsu":       YakuSankantsu,
	"tanyao":          YakuTanyao,
	"haku":            YakuYakuhaiHaku,
	"hatsu":           YakuYakuhaiHatsu,
	"chun":            YakuYakuhaiChun,
	"jikaze":          YakuYakuhaiSeat,
	"bakaze":          YakuYakuhaiRound,
	"chanta":          YakuChanta,
	"junchan":         YakuJunchan,
	"honroutou":       YakuHonroutou,
	"shousangen":      YakuShousangen,
	"honitsu":         YakuHonitsu,
	"chinitsu":        YakuChinitsu,
	"kokushi":         YakuKokushi,
	"suuankou":        YakuSuuankou,
	"daisangen":       YakuDaisangen,
	"shousuushii":     YakuShousuushii,
	"daisuushii":      YakuDaisuushii,
	"tsuuiisou":       YakuTsuuiisou,
	"chinroutou":      YakuChinroutou,
	"ryuuiisou":       YakuRyuuiisou,
	"chuuren":         YakuChuuren,
	"suukantsu":       YakuSuukantsu,
	"tenhou":          YakuTenhou,
	"chiihou":         YakuChiihou,
	"open_riichi":     YakuOpenRiichi,
	"nagashi_mangan":  YakuNagashiMangan,
	"renhou":          YakuRenhou,
}

// YakuByName resolves a yaku spelling. The second value is false for unknown names.
func YakuByName(name string) (int, bool) {
	id, ok := YakuNames[name]
	return id, ok
}

// YakuName is the reverse of YakuByName; unknown ids yield "".
func YakuName(id int) string {
	for name, v := range YakuNames {
		if v == id {
			return name
		}
	}
	return ""
}

// YakuList returns every known yaku spelling, sorted.
func YakuList() []string {
	names := make([]string, 0, len(YakuNames))
	for n := range YakuNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
