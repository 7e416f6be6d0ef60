package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/LocPack/internal/app/pipeline"
	"github.com/John-Robertt/LocPack/internal/assetdb"
	"github.com/John-Robertt/LocPack/internal/config"
	"github.com/John-Robertt/LocPack/internal/domain"
	"github.com/John-Robertt/LocPack/internal/export"
	"github.com/John-Robertt/LocPack/internal/i18nfile"
	"github.com/John-Robertt/LocPack/internal/infra/fsx"
	"github.com/John-Robertt/LocPack/internal/infra/logx"
	"github.com/John-Robertt/LocPack/internal/lint"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "pre":
		os.Exit(hookCmd("pre", args[1:]))
	case "post":
		os.Exit(hookCmd("post", args[1:]))
	case "restore":
		os.Exit(hookCmd("restore", args[1:]))
	case "check":
		os.Exit(checkCmd(args[1:]))
	case "export":
		os.Exit(exportCmd(args[1:]))
	case "init":
		os.Exit(initCmd(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

// hookCmd 执行一个生命周期钩子并输出 HookReport。
// pre/post/restore 共享同一条路径，只在调用哪个钩子上分叉。
func hookCmd(cmd string, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printHookUsage(cmd)
			return 0
		}
	}

	ca, err := parseCmdArgs(cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printHookUsage(cmd)
		return 2
	}

	hook := map[string]string{
		"pre":     domain.HookPreBuild,
		"post":    domain.HookPostBuild,
		"restore": domain.HookUnload,
	}[cmd]

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, ca.toCLIArgs())
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, hook, err), ca.JSON)
		return 1
	}

	log := logx.New(os.Stderr, eff.LogLevel, eff.LogColor && isTTY(os.Stderr))
	gw := assetdb.NewDirDB(eff.Path)

	progressW, interactive := pickProgressWriter()
	if ca.JSON {
		interactive = false
	}
	var obs pipeline.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	ctrl, err := pipeline.New(gw, eff, log, obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化流水线失败：%v\n", err)
		return 1
	}
	defer func() { _ = ctrl.Close() }()

	ctx := context.Background()
	var rep domain.HookReport
	switch cmd {
	case "pre":
		rep = ctrl.PreBuild(ctx)
	case "post":
		rep = ctrl.PostBuild(ctx)
		// 钩子本身先返回（编辑器语义），CLI 是一次性进程：必须等
		// 后台回迁收尾再退出，并把逐资源结果并入报告。
		if results, remaining, had := ctrl.AwaitBackground(ctx); had {
			rep.Resources = append(rep.Resources, results...)
			rep.Summary.Remaining = remaining
			rep.FinishedAt = time.Now().UTC()
			rep.Finalize()
			if remaining > 0 && rep.Status == domain.StatusRestored {
				rep.Status = domain.StatusPartial
			}
		}
	case "restore":
		rep = ctrl.Unload(ctx)
	}

	emitReport(rep, ca.JSON)
	if rep.Status == domain.StatusFailed || rep.Status == domain.StatusPartial {
		return 1
	}
	return 0
}

// checkCmd 读取主数据文件并做体检；错误级发现 → 退出码 1。
func checkCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printCheckUsage()
			return 0
		}
	}

	ca, err := parseCmdArgs("check", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printCheckUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.toCLIArgs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx := context.Background()
	gw := assetdb.NewDirDB(eff.Path)
	ds, _, code := loadDataset(ctx, gw, eff)
	if code != 0 {
		return code
	}

	rep := lint.Check(ctx, ds, gw)
	if ca.JSON || !isTTY(os.Stdout) {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(rep)
	} else {
		fmt.Fprintf(os.Stdout, "体检：findings=%d errors=%d warnings=%d\n",
			len(rep.Findings), rep.Errors, rep.Warnings,
		)
		for _, f := range rep.Findings {
			loc := f.Key
			if f.Language != "" {
				if loc != "" {
					loc += " "
				}
				loc += "[" + f.Language + "]"
			}
			if loc == "" {
				loc = "<dataset>"
			}
			fmt.Fprintf(os.Stdout, "  %-5s %s %s: %s\n", f.Severity, f.Code, loc, f.Detail)
		}
	}

	if rep.HasErrors() {
		return 1
	}
	return 0
}

// exportCmd 把数据集按指定格式导出为每语言一个文件。
func exportCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printExportUsage()
			return 0
		}
	}

	ca, err := parseCmdArgs("export", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printExportUsage()
		return 2
	}

	reg, err := export.NewDefaultRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化 exporter registry 失败：%v\n", err)
		return 1
	}
	exp, ok := reg.Get(ca.Format)
	if !ok {
		fmt.Fprintf(os.Stderr, "参数错误：未知格式 %q（可用：%s）\n\n", ca.Format, strings.Join(reg.Formats(), ", "))
		printExportUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.toCLIArgs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx := context.Background()
	gw := assetdb.NewDirDB(eff.Path)
	ds, _, code := loadDataset(ctx, gw, eff)
	if code != 0 {
		return code
	}

	langs := []string{}
	if ca.Lang != "" {
		langs = append(langs, ca.Lang)
	} else {
		for _, l := range ds.Languages {
			langs = append(langs, l.Code)
		}
	}
	if len(langs) == 0 {
		fmt.Fprintln(os.Stderr, "数据集未声明任何语言，没有可导出的内容")
		return 1
	}

	outDir := ca.Out
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(cwd, outDir)
	}

	failed := 0
	for _, lang := range langs {
		b, err := exp.Export(ds, lang)
		if err != nil {
			fmt.Fprintf(os.Stderr, "导出 %s 失败：%v\n", lang, err)
			failed++
			continue
		}
		name := exp.FileName(lang)
		if err := fsx.WriteFileAtomicReplace(outDir, name, b); err != nil {
			fmt.Fprintf(os.Stderr, "写入 %s 失败：%v\n", name, err)
			failed++
			continue
		}
		fmt.Fprintf(os.Stderr, "导出：%s\n", filepath.Join(outDir, name))
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// initCmd 在配置的导出目录下创建一份空的本地化数据文件。
func initCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printInitUsage()
			return 0
		}
	}

	ca, err := parseCmdArgs("init", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printInitUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.toCLIArgs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if eff.FileURL() == "" {
		fmt.Fprintln(os.Stderr, "未配置 export_dir：不知道该把文件建在哪里（--export-dir 或配置文件）")
		return 1
	}

	lang := ca.Lang
	if lang == "" {
		lang = "en"
	}
	ds := &domain.Dataset{
		Languages:       []domain.Language{{Name: lang, Code: lang}},
		DefaultLanguage: lang,
		Keys:            []string{},
		Items:           map[string]domain.Item{},
	}
	b, err := i18nfile.Encode(ds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "生成初始内容失败：%v\n", err)
		return 1
	}

	ctx := context.Background()
	gw := assetdb.NewDirDB(eff.Path)
	if _, err := gw.CreateAsset(ctx, eff.FileURL(), b, assetdb.CreateOptions{}); err != nil {
		fmt.Fprintf(os.Stderr, "创建失败：%v\n", err)
		return 1
	}
	if p, ok, err := gw.ResolvePath(ctx, eff.FileURL()); err == nil && ok {
		fmt.Fprintf(os.Stderr, "已创建：%s\n", p)
	}
	return 0
}

// loadDataset 解析主数据文件位置并装载；失败时自行输出原因并给出退出码。
func loadDataset(ctx context.Context, gw assetdb.Gateway, eff config.Effective) (*domain.Dataset, string, int) {
	fileURL := eff.FileURL()
	if fileURL == "" {
		fmt.Fprintln(os.Stderr, "未配置 export_dir：不知道主数据文件在哪里（--export-dir 或配置文件）")
		return nil, "", 1
	}
	p, ok, err := gw.ResolvePath(ctx, fileURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "解析 %s 失败：%v\n", fileURL, err)
		return nil, "", 1
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "主数据文件不存在：%s\n", fileURL)
		return nil, "", 1
	}
	ds, err := i18nfile.Load(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取主数据文件失败：%v\n", err)
		return nil, "", 1
	}
	return ds, p, 0
}

type cmdArgs struct {
	Path string

	ExportDir    string
	ExportDirSet bool

	StagingDir    string
	StagingDirSet bool

	LogLevel    string
	LogLevelSet bool

	LogColor    bool
	LogColorSet bool

	JSON bool

	// export 专属
	Format string
	Out    string
	// export/init 共用
	Lang string
}

func (ca cmdArgs) toCLIArgs() config.CLIArgs {
	return config.CLIArgs{
		Path:          ca.Path,
		ExportDir:     ca.ExportDir,
		ExportDirSet:  ca.ExportDirSet,
		StagingDir:    ca.StagingDir,
		StagingDirSet: ca.StagingDirSet,
		LogLevel:      ca.LogLevel,
		LogLevelSet:   ca.LogLevelSet,
		LogColor:      ca.LogColor,
		LogColorSet:   ca.LogColorSet,
	}
}

func parseCmdArgs(cmd string, args []string) (cmdArgs, error) {
	ca := cmdArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--export-dir":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--export-dir 需要一个值")
			}
			i++
			ca.ExportDir = args[i]
			ca.ExportDirSet = true
		case strings.HasPrefix(a, "--export-dir="):
			ca.ExportDir = strings.TrimPrefix(a, "--export-dir=")
			ca.ExportDirSet = true
		case a == "--staging-dir":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--staging-dir 需要一个值")
			}
			i++
			ca.StagingDir = args[i]
			ca.StagingDirSet = true
		case strings.HasPrefix(a, "--staging-dir="):
			ca.StagingDir = strings.TrimPrefix(a, "--staging-dir=")
			ca.StagingDirSet = true
		case a == "--log-level":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--log-level 需要一个值")
			}
			i++
			ca.LogLevel = args[i]
			ca.LogLevelSet = true
		case strings.HasPrefix(a, "--log-level="):
			ca.LogLevel = strings.TrimPrefix(a, "--log-level=")
			ca.LogLevelSet = true
		case a == "--color":
			ca.LogColor = true
			ca.LogColorSet = true
		case a == "--no-color":
			ca.LogColor = false
			ca.LogColorSet = true
		case a == "--json":
			ca.JSON = true
		case cmd == "export" && a == "--format":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--format 需要一个值")
			}
			i++
			ca.Format = args[i]
		case cmd == "export" && strings.HasPrefix(a, "--format="):
			ca.Format = strings.TrimPrefix(a, "--format=")
		case cmd == "export" && a == "--out":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--out 需要一个值")
			}
			i++
			ca.Out = args[i]
		case cmd == "export" && strings.HasPrefix(a, "--out="):
			ca.Out = strings.TrimPrefix(a, "--out=")
		case (cmd == "export" || cmd == "init") && a == "--lang":
			if i+1 >= len(args) {
				return cmdArgs{}, fmt.Errorf("--lang 需要一个值")
			}
			i++
			ca.Lang = args[i]
		case (cmd == "export" || cmd == "init") && strings.HasPrefix(a, "--lang="):
			ca.Lang = strings.TrimPrefix(a, "--lang=")
		case strings.HasPrefix(a, "-"):
			return cmdArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ca.Path != "" {
				return cmdArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ca.Path, a)
			}
			ca.Path = a
		}
	}

	if cmd == "export" {
		if strings.TrimSpace(ca.Format) == "" {
			return cmdArgs{}, fmt.Errorf("--format 不能为空")
		}
		if strings.TrimSpace(ca.Out) == "" {
			return cmdArgs{}, fmt.Errorf("--out 不能为空")
		}
	}

	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  locpack <命令> [path] [参数]

命令：
  pre      构建前：备份主数据文件、收窄为默认语言、搬离非默认语言图片
  post     构建后：恢复主数据文件，后台回迁图片
  restore  紧急恢复：回迁全部遗留记录并恢复主数据文件
  check    体检：校验语言声明、取值与精灵图引用
  export   导出：把文本条目导出为 goi18n/jsondict/yamlcat 格式
  init     初始化：在导出目录下创建空的主数据文件

使用 "locpack <命令> --help" 查看详细说明。
`)
}

func printHookUsage(cmd string) {
	desc := map[string]string{
		"pre":     "构建前钩子：备份 + 收窄 + 搬离（stdout 输出 HookReport）",
		"post":    "构建后钩子：恢复文件并等待图片回迁收尾（stdout 输出 HookReport）",
		"restore": "紧急恢复：回迁全部遗留记录并恢复主数据文件（stdout 输出 HookReport）",
	}[cmd]
	fmt.Fprintf(os.Stdout, `用法：
  locpack %s [path] [--export-dir URL] [--staging-dir DIR] [--log-level L] [--color|--no-color] [--json]

%s

参数：
  path          项目根（未给出则读 <cwd>/locpack.json 的 path）
  --export-dir  主数据文件所在目录（db://assets/… / project://assets/… / 相对路径）
  --staging-dir 搬离暂存目录（默认 <path>/temp/locpack/moved_assets）
  --log-level   debug|info|warn|error
  --json        强制 stdout 输出 JSON（即使是交互终端）
  -h, --help    显示帮助
`, cmd, desc)
}

func printCheckUsage() {
	fmt.Fprint(os.Stdout, `用法：
  locpack check [path] [--export-dir URL] [--json]

读取主数据文件并体检：语言声明、默认语言取值、精灵图引用存在性、
富文本标记一致性。错误级发现时退出码为 1。

参数：
  --export-dir  主数据文件所在目录
  --json        强制 stdout 输出 JSON
  -h, --help    显示帮助
`)
}

func printExportUsage() {
	fmt.Fprint(os.Stdout, `用法：
  locpack export --format F --out DIR [--lang CODE] [path] [--export-dir URL]

把文本条目按语言导出（精灵图条目不参与）。未指定 --lang 时导出
全部已声明语言，每种语言一个文件。

参数：
  --format      goi18n | jsondict | yamlcat
  --out         输出目录（相对 cwd）
  --lang        只导出一种语言
  --export-dir  主数据文件所在目录
  -h, --help    显示帮助
`)
}

func printInitUsage() {
	fmt.Fprint(os.Stdout, `用法：
  locpack init [path] --export-dir URL [--lang CODE]

在导出目录下创建一份空的主数据文件（目标已存在则报错）。

参数：
  --export-dir  主数据文件所在目录（必须可知，配置或参数给出）
  --lang        初始默认语言码（默认 en）
  -h, --help    显示帮助
`)
}

// emitReport 按输出契约落报告：
// - stdout 是交互终端且未要求 --json：打印人类可读摘要，失败明细走 stderr
// - 其他情况：stdout 必须且仅输出一个 HookReport JSON（摘要走 stderr）
func emitReport(rep domain.HookReport, forceJSON bool) {
	summary := fmt.Sprintf("%s 完成：status=%s evicted=%d restored=%d skipped=%d failed=%d remaining=%d",
		rep.Hook, rep.Status,
		rep.Summary.Evicted, rep.Summary.Restored, rep.Summary.Skipped, rep.Summary.Failed, rep.Summary.Remaining,
	)

	if !forceJSON && isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summary)
		if rep.ErrorCode != "" {
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", rep.Hook, rep.ErrorCode, rep.ErrorMsg)
		}
		for _, res := range rep.Resources {
			if res.Status != domain.ResourceStatusFailed {
				continue
			}
			id := res.ResourceID
			if id == "" {
				id = "<unknown>"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", id, res.ErrorCode, res.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rep)
	fmt.Fprintln(os.Stderr, summary)
}

// reportForConfigError 把配置阶段的失败包装成与正常输出同构的报告，
// 让调用方（CI、编辑器宿主）永远只面对一种结构。
func reportForConfigError(cwdAbs, hook string, err error) domain.HookReport {
	now := time.Now().UTC()
	rep := domain.HookReport{
		Hook:       hook,
		RunID:      logx.NewRunID(),
		Project:    cwdAbs,
		StartedAt:  now,
		FinishedAt: now,
		Status:     domain.StatusFailed,
		ErrorCode:  config.Code(err),
		ErrorMsg:   err.Error(),
		Resources:  []domain.ResourceResult{},
	}
	rep.Finalize()
	return rep
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
