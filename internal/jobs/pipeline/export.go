package pipeline

import (
	"fmt"

	"github.com/yungbote/nexusknowledge-backend/internal/export"
	"github.com/yungbote/nexusknowledge-backend/internal/jobs/runtime"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/apperr"
	"github.com/yungbote/nexusknowledge-backend/internal/platform/logger"
	"github.com/yungbote/nexusknowledge-backend/internal/services"
)

type ExportHandler struct {
	exporter   export.Service
	defaultDir string
	log        *logger.Logger
}

func NewExportHandler(exporter export.Service, defaultDir string, baseLog *logger.Logger) *ExportHandler {
	return &ExportHandler{
		exporter:   exporter,
		defaultDir: defaultDir,
		log:        baseLog.With("handler", services.JobExport),
	}
}

func (h *ExportHandler) Type() string { return services.JobExport }

func (h *ExportHandler) Run(jc *runtime.Context) error {
	rawDataID, ok := jc.PayloadUUID("raw_data_id")
	if !ok {
		return fmt.Errorf("%w: payload missing raw_data_id", apperr.ErrInvalidArgument)
	}
	directory, ok := jc.PayloadString("directory")
	if !ok {
		directory = h.defaultDir
	}
	jc.Progress("export")

	files, err := h.exporter.Export(jc.Ctx, rawDataID, directory)
	if err != nil {
		return err
	}
	jc.Succeed("export", map[string]any{"files": files})
	return nil
}
