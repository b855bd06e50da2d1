package extract

// DOM queries evaluated on the record detail view. Each returns an empty
// value when its target is absent.
const (
	// ReadyQuery is truthy once the tracking table or the description block rendered.
	ReadyQuery = `document.querySelector('#main_table') || document.querySelector('div.ng-star-inserted p strong')`

	MotivosQuery = `(() => {
  const strong = document.querySelector('div.ng-star-inserted p strong');
  if (!strong || !strong.parentElement) { return ''; }
  return (strong.parentElement.innerText || '').trim();
})()`

	Motivos2Query = `(() => {
  const div = Array.from(document.querySelectorAll('div')).find(d => (d.innerText || '').includes('Motivos:'));
  if (!div) { return ''; }
  return div.innerText.replace('Motivos:', '').trim();
})()`

	RowsQuery = `Array.from(document.querySelectorAll('#main_table tbody tr')).map(tr =>
  Array.from(tr.querySelectorAll('td')).map(td => (td.innerText || '').trim()))`

	LinksQuery = `(() => {
  const listed = new Set(Array.from(document.querySelectorAll('div[col-id="anex_nomb_archivo"] a[href]')));
  return Array.from(document.querySelectorAll('a[href]')).map(a => ({href: a.href, listed: listed.has(a)}));
})()`
)
