package paintward

import (
	"context"
)

// Typed wrappers over the worker's JSON-RPC method set. These are thin
// calls: parameter shapes mirror the worker's vocabulary and no drawing
// logic lives on this side of the pipe.

// Point is a canvas coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ConnectParams identifies the client to the worker.
type ConnectParams struct {
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
}

// DrawLineParams draws a line between two canvas points.
type DrawLineParams struct {
	StartX    int    `json:"start_x"`
	StartY    int    `json:"start_y"`
	EndX      int    `json:"end_x"`
	EndY      int    `json:"end_y"`
	Color     string `json:"color,omitempty"`
	Thickness int    `json:"thickness,omitempty"`
}

// DrawShapeParams draws a preset shape.
type DrawShapeParams struct {
	ShapeType string `json:"shape_type"`
	StartX    int    `json:"start_x"`
	StartY    int    `json:"start_y"`
	EndX      int    `json:"end_x"`
	EndY      int    `json:"end_y"`
	Color     string `json:"color,omitempty"`
	Thickness int    `json:"thickness,omitempty"`
	FillType  string `json:"fill_type,omitempty"`
}

// DrawPolylineParams connects a series of points.
type DrawPolylineParams struct {
	Points    []Point `json:"points"`
	Color     string  `json:"color,omitempty"`
	Thickness int     `json:"thickness,omitempty"`
	Tool      string  `json:"tool,omitempty"`
}

// AddTextParams places text on the canvas.
type AddTextParams struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Text     string `json:"text"`
	Color    string `json:"color,omitempty"`
	FontName string `json:"font_name,omitempty"`
	FontSize int    `json:"font_size,omitempty"`
}

// SaveCanvasParams writes the canvas to disk.
type SaveCanvasParams struct {
	FilePath string `json:"file_path"`
	Format   string `json:"format"`
}

// CanvasDimensions is the result of get_canvas_dimensions.
type CanvasDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CreateCanvasParams sizes a new canvas.
type CreateCanvasParams struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	BackgroundColor string `json:"background_color,omitempty"`
}

// callChecked issues a request and converts a worker error payload into a
// Go error. The response is still returned for its raw payload.
func (s *Session) callChecked(ctx context.Context, method string, params any) (*Response, error) {
	resp, err := s.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return resp, resp.Err
	}

	return resp, nil
}

// Initialize performs the protocol handshake. The raw response is returned
// because capability payloads vary across worker builds.
func (s *Session) Initialize(ctx context.Context) (*Response, error) {
	return s.callChecked(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo": map[string]any{
			"name":    "paintward",
			"version": "0.1.0",
		},
	})
}

// Initialized sends the post-handshake notification.
func (s *Session) Initialized(ctx context.Context) error {
	return s.Notify(ctx, "notifications/initialized", nil)
}

// Connect registers this client with the worker.
func (s *Session) Connect(ctx context.Context, clientID, clientName string) error {
	_, err := s.callChecked(ctx, "connect", &ConnectParams{
		ClientID:   clientID,
		ClientName: clientName,
	})

	return err
}

// Disconnect releases the worker's window binding. The worker keeps running
// and a later Connect re-binds it.
func (s *Session) Disconnect(ctx context.Context) error {
	_, err := s.callChecked(ctx, "disconnect", nil)

	return err
}

// ActivateWindow brings the paint window to the foreground.
func (s *Session) ActivateWindow(ctx context.Context) error {
	_, err := s.callChecked(ctx, "activate_window", nil)

	return err
}

// CanvasDimensions reports the active canvas size.
func (s *Session) CanvasDimensions(ctx context.Context) (*CanvasDimensions, error) {
	resp, err := s.callChecked(ctx, "get_canvas_dimensions", nil)
	if err != nil {
		return nil, err
	}

	var dims CanvasDimensions
	if err := resp.UnmarshalResult(&dims); err != nil {
		return nil, err
	}

	return &dims, nil
}

// SelectTool activates a drawing tool ("pencil", "brush", "fill", ...).
func (s *Session) SelectTool(ctx context.Context, tool string) error {
	_, err := s.callChecked(ctx, "select_tool", map[string]any{"tool": tool})

	return err
}

// SetColor sets the active color ("#RRGGBB").
func (s *Session) SetColor(ctx context.Context, color string) error {
	_, err := s.callChecked(ctx, "set_color", map[string]any{"color": color})

	return err
}

// SetBrushSize sets the brush or pencil size in pixels (1-30). An empty tool
// keeps the worker's current one.
func (s *Session) SetBrushSize(ctx context.Context, size int, tool string) error {
	params := map[string]any{"size": size}
	if tool != "" {
		params["tool"] = tool
	}

	_, err := s.callChecked(ctx, "set_brush_size", params)

	return err
}

// SetFill sets the shape fill type ("none", "solid", or "outline").
func (s *Session) SetFill(ctx context.Context, fillType string) error {
	_, err := s.callChecked(ctx, "set_fill", map[string]any{"fill_type": fillType})

	return err
}

// SetThickness sets the stroke thickness level (1-5).
func (s *Session) SetThickness(ctx context.Context, level int) error {
	_, err := s.callChecked(ctx, "set_thickness", map[string]any{"level": level})

	return err
}

// DrawPixel colors a single canvas pixel.
func (s *Session) DrawPixel(ctx context.Context, x, y int, color string) error {
	params := map[string]any{"x": x, "y": y}
	if color != "" {
		params["color"] = color
	}

	_, err := s.callChecked(ctx, "draw_pixel", params)

	return err
}

// DrawLine draws a line.
func (s *Session) DrawLine(ctx context.Context, params *DrawLineParams) error {
	_, err := s.callChecked(ctx, "draw_line", params)

	return err
}

// DrawPolyline connects a series of points.
func (s *Session) DrawPolyline(ctx context.Context, params *DrawPolylineParams) error {
	_, err := s.callChecked(ctx, "draw_polyline", params)

	return err
}

// DrawShape draws a preset shape.
func (s *Session) DrawShape(ctx context.Context, params *DrawShapeParams) error {
	_, err := s.callChecked(ctx, "draw_shape", params)

	return err
}

// AddText places text on the canvas.
func (s *Session) AddText(ctx context.Context, params *AddTextParams) error {
	_, err := s.callChecked(ctx, "add_text", params)

	return err
}

// ClearCanvas wipes the canvas.
func (s *Session) ClearCanvas(ctx context.Context) error {
	_, err := s.callChecked(ctx, "clear_canvas", nil)

	return err
}

// CreateCanvas replaces the canvas with a new one of the given size.
func (s *Session) CreateCanvas(ctx context.Context, params *CreateCanvasParams) error {
	_, err := s.callChecked(ctx, "create_canvas", params)

	return err
}

// SelectRegion selects the rectangle between two canvas points.
func (s *Session) SelectRegion(ctx context.Context, startX, startY, endX, endY int) error {
	_, err := s.callChecked(ctx, "select_region", map[string]any{
		"start_x": startX,
		"start_y": startY,
		"end_x":   endX,
		"end_y":   endY,
	})

	return err
}

// CopySelection copies the current selection to the clipboard.
func (s *Session) CopySelection(ctx context.Context) error {
	_, err := s.callChecked(ctx, "copy_selection", nil)

	return err
}

// Paste pastes the clipboard contents at a canvas point.
func (s *Session) Paste(ctx context.Context, x, y int) error {
	_, err := s.callChecked(ctx, "paste", map[string]any{"x": x, "y": y})

	return err
}

// SaveCanvas writes the canvas to disk ("png", "jpeg", or "bmp").
func (s *Session) SaveCanvas(ctx context.Context, filePath, format string) error {
	_, err := s.callChecked(ctx, "save_canvas", &SaveCanvasParams{
		FilePath: filePath,
		Format:   format,
	})

	return err
}

// Version reports the worker's version string.
func (s *Session) Version(ctx context.Context) (string, error) {
	resp, err := s.callChecked(ctx, "get_version", nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Version string `json:"version"`
	}

	if err := resp.UnmarshalResult(&result); err != nil {
		return "", err
	}

	return result.Version, nil
}
