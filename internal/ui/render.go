package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tturner/etherip/internal/capture"
	"github.com/tturner/etherip/internal/cip/client"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/enip"
)

// RenderIdentities renders ListIdentity or discovery results as a table.
func RenderIdentities(records []enip.IdentityRecord, s Styles) string {
	if len(records) == 0 {
		return s.Dim.Render("no devices answered")
	}
	t := Table{Headers: []string{"ADDRESS", "PRODUCT", "VENDOR", "TYPE", "REV", "SERIAL"}}
	for _, r := range records {
		addr := "-"
		if len(r.IP) > 0 && !r.IP.IsUnspecified() {
			addr = fmt.Sprintf("%s:%d", r.IP, r.Port)
		}
		t.Rows = append(t.Rows, []string{
			addr,
			r.ProductName,
			r.VendorName(),
			r.DeviceTypeName(),
			r.Revision(),
			fmt.Sprintf("%08X", r.SerialNumber),
		})
	}
	return t.Render(s)
}

// RenderIdentity renders one Identity object in detail.
func RenderIdentity(title string, r enip.IdentityRecord, s Styles) string {
	return Section(title, KeyValues([][2]string{
		{"Product", r.ProductName},
		{"Vendor", fmt.Sprintf("%s (%d)", r.VendorName(), r.VendorID)},
		{"Device type", fmt.Sprintf("%s (0x%02X)", r.DeviceTypeName(), r.DeviceType)},
		{"Product code", strconv.Itoa(int(r.ProductCode))},
		{"Revision", r.Revision()},
		{"Serial", fmt.Sprintf("0x%08X", r.SerialNumber)},
		{"Status", fmt.Sprintf("0x%04X", r.Status)},
		{"State", fmt.Sprintf("0x%02X", r.State)},
	}, s), s)
}

// RenderServices renders a ListServices reply.
func RenderServices(records []enip.ServiceRecord, s Styles) string {
	if len(records) == 0 {
		return s.Dim.Render("no services advertised")
	}
	t := Table{Headers: []string{"NAME", "TYPE", "VERSION", "CIP/TCP", "CLASS 0/1 UDP"}}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.Name,
			fmt.Sprintf("0x%04X", r.TypeCode),
			strconv.Itoa(int(r.Version)),
			yesNo(r.SupportsTCP()),
			yesNo(r.SupportsUDP()),
		})
	}
	return t.Render(s)
}

// RenderValue renders a tag value, one element per line for arrays.
func RenderValue(tag string, v types.Value, s Styles) string {
	elems := v.Values()
	if len(elems) == 1 {
		return Section(tag, KeyValues([][2]string{
			{"Type", v.Type().String()},
			{"Value", elems[0]},
		}, s), s)
	}
	pairs := [][2]string{{"Type", fmt.Sprintf("%s[%d]", v.Type(), v.Count())}}
	for i, e := range elems {
		pairs = append(pairs, [2]string{fmt.Sprintf("[%d]", i), e})
	}
	return Section(tag, KeyValues(pairs, s), s)
}

// RenderBatch renders per-item batch outcomes.
func RenderBatch(results []client.BatchResult, write bool, s Styles) string {
	t := Table{Headers: []string{"TAG", "RESULT", "DETAIL"}}
	for _, r := range results {
		if r.Err != nil {
			t.Rows = append(t.Rows, []string{r.Tag, Badge(false, "failed", s), r.Err.Error()})
			continue
		}
		detail := ""
		if !write {
			detail = r.Value.String()
		}
		t.Rows = append(t.Rows, []string{r.Tag, Badge(true, "ok", s), detail})
	}
	return t.Render(s)
}

// RenderFrames renders frames decoded from a capture.
func RenderFrames(frames []capture.Frame, s Styles) string {
	if len(frames) == 0 {
		return s.Dim.Render("no EtherNet/IP frames found")
	}
	t := Table{Headers: []string{"#", "TIME", "FLOW", "SUMMARY"}}
	start := frames[0].Timestamp
	for i, f := range frames {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.6f", f.Timestamp.Sub(start).Seconds()),
			f.Src + " → " + f.Dst,
			f.Describe(),
		})
	}
	return t.Render(s)
}

// FormatCopy is the clipboard form of a value: elements joined by commas,
// ready to paste back into a write.
func FormatCopy(v types.Value) string {
	return strings.Join(v.Values(), ",")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
